package blob

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"github.com/go-faster/errors"
	"github.com/pkg/sftp"
	"github.com/tgdrive/clouddrive/internal/config"
	"golang.org/x/crypto/ssh"
)

// SFTP stores blobs on a remote host over SSH.
type SFTP struct {
	conn   *ssh.Client
	client *sftp.Client
	root   string
}

func NewSFTP(cfg *config.SFTPConfig, timeout time.Duration) (*SFTP, error) {
	if cfg.Addr == "" {
		return nil, errors.New("sftp addr is required")
	}
	var auths []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "read sftp key")
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, errors.Wrap(err, "parse sftp key")
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auths = append(auths, ssh.Password(cfg.Password))
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case cfg.HostKey != "":
		pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, errors.Wrap(err, "parse sftp host key")
		}
		hostKey = ssh.FixedHostKey(pk)
	case cfg.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey()
	default:
		return nil, errors.New("sftp host-key is required unless insecure-ignore-host-key is set")
	}

	conn, err := ssh.Dial("tcp", cfg.Addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auths,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "dial sftp")
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "start sftp session")
	}
	root := cfg.Root
	if root == "" {
		root = "."
	}
	return &SFTP{conn: conn, client: client, root: root}, nil
}

func (s *SFTP) resolve(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return path.Join(s.root, c), nil
}

func (s *SFTP) Put(ctx context.Context, p string, r io.Reader, size int64, _ string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := s.client.MkdirAll(path.Dir(full)); err != nil {
		return errors.Wrap(err, "create remote dir")
	}
	tmp := full + ".part"
	f, err := s.client.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create remote file")
	}
	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && size >= 0 && n != size {
		err = errors.Errorf("write blob: got %d bytes, want %d", n, size)
	}
	if err != nil {
		s.client.Remove(tmp)
		return err
	}
	return s.client.PosixRename(tmp, full)
}

func (s *SFTP) Get(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := s.client.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SFTP) Delete(_ context.Context, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := s.client.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *SFTP) Stat(_ context.Context, p string) (int64, error) {
	full, err := s.resolve(p)
	if err != nil {
		return 0, err
	}
	fi, err := s.client.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNotExist
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *SFTP) Close() error {
	err := s.client.Close()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
