package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sshConn bundles an SSH client with its SFTP session
type sshConn struct {
	client *ssh.Client
	sftp   *sftp.Client
}

// Exec runs a command on the remote host and returns stdout, stderr, and
// the exit status. A non-zero exit is not an error; callers decide.
func (c *sshConn) Exec(ctx context.Context, cmd string, sudo bool) (string, string, int, error) {
	sess, err := c.client.NewSession()
	if err != nil {
		return "", "", -1, err
	}
	defer sess.Close()

	if sudo {
		cmd = fmt.Sprintf("sudo -n sh -c %q", cmd)
	}

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Start(cmd); err != nil {
		return "", "", -1, err
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return "", "", -1, ctx.Err()
	case err := <-done:
		exit := 0
		if err != nil {
			if ee, ok := err.(*ssh.ExitError); ok {
				exit = ee.ExitStatus()
			} else {
				exit = 1
			}
		}
		return stdout.String(), stderr.String(), exit, nil
	}
}

// Put uploads a file over SFTP
func (c *sshConn) Put(src io.Reader, dst string, mode os.FileMode) error {
	f, err := c.sftp.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		return err
	}
	return c.sftp.Chmod(dst, mode)
}

// Close tears down both sessions
func (c *sshConn) Close() error {
	_ = c.sftp.Close()
	return c.client.Close()
}
