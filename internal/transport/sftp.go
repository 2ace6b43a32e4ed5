package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/time/rate"
)

// Compile-time interface check.
var _ Session = (*SFTPSession)(nil)

// SFTPSession is a Session over a single SFTP channel.
type SFTPSession struct {
	client  *sftp.Client
	ssh     *ssh.Client
	limiter *rate.Limiter
	host    string
	root    string

	// Serializes commands; the engine may call from several goroutines.
	mu sync.Mutex
}

// NewSFTPSession opens an SFTP channel on sshClient. Every path is resolved
// under root. limiter may be nil. The caller must call Close when done.
func NewSFTPSession(sshClient *ssh.Client, host, root string, limiter *rate.Limiter) (*SFTPSession, error) {
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}
	return newSFTPSession(sftpClient, sshClient, host, root, limiter), nil
}

func newSFTPSession(client *sftp.Client, sshClient *ssh.Client, host, root string, limiter *rate.Limiter) *SFTPSession {
	if root == "" {
		root = "/"
	}
	return &SFTPSession{
		client:  client,
		ssh:     sshClient,
		limiter: limiter,
		host:    host,
		root:    root,
	}
}

func (s *SFTPSession) Host() string { return s.host }
func (s *SFTPSession) Root() string { return s.root }

func (s *SFTPSession) abs(p string) string {
	return path.Join(s.root, p)
}

func (s *SFTPSession) List(ctx context.Context, dir string) ([]FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	absPath := s.abs(dir)
	infos, err := s.client.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("sftp readdir %s: %w", absPath, err)
	}
	entries := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, sftpFileInfoToEntry(info))
	}
	return entries, nil
}

func (s *SFTPSession) Get(ctx context.Context, p string, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	absPath := s.abs(p)
	f, err := s.client.Open(absPath)
	if err != nil {
		return 0, fmt.Errorf("sftp open %s: %w", absPath, err)
	}
	defer f.Close()

	n, err := io.Copy(newRateLimitedWriter(ctx, w, s.limiter), f)
	if err != nil {
		return n, fmt.Errorf("sftp read %s: %w", absPath, err)
	}
	return n, nil
}

// Put writes to a temp file beside p and renames it into place, so a failed
// transfer never leaves a truncated file on the server.
func (s *SFTPSession) Put(ctx context.Context, r io.Reader, p string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	absPath := s.abs(p)
	dir := path.Dir(absPath)
	if err := s.client.MkdirAll(dir); err != nil {
		return 0, fmt.Errorf("sftp mkdir %s: %w", dir, err)
	}

	tmpName := fmt.Sprintf(".%s.%s%s", path.Base(absPath), uuid.New().String()[:8], TempSuffix)
	tmpPath := path.Join(dir, tmpName)
	f, err := s.client.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return 0, fmt.Errorf("sftp create temp %s: %w", tmpPath, err)
	}

	n, err := io.Copy(f, newRateLimitedReader(ctx, r, s.limiter))
	if err != nil {
		f.Close()
		_ = s.client.Remove(tmpPath)
		return n, fmt.Errorf("sftp write %s: %w", absPath, err)
	}
	if err := f.Close(); err != nil {
		_ = s.client.Remove(tmpPath)
		return n, fmt.Errorf("sftp close %s: %w", tmpPath, err)
	}

	// SFTP rename fails if target exists; remove first.
	_ = s.client.Remove(absPath)
	if err := s.client.Rename(tmpPath, absPath); err != nil {
		_ = s.client.Remove(tmpPath)
		return n, fmt.Errorf("sftp rename %s: %w", absPath, err)
	}
	return n, nil
}

func (s *SFTPSession) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	absPath := s.abs(p)
	if err := s.client.MkdirAll(absPath); err != nil {
		return fmt.Errorf("sftp mkdir %s: %w", absPath, err)
	}
	return nil
}

func (s *SFTPSession) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	absPath := s.abs(p)
	if err := s.client.Remove(absPath); err != nil {
		return fmt.Errorf("sftp remove %s: %w", absPath, err)
	}
	return nil
}

func (s *SFTPSession) RemoveDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	absPath := s.abs(p)
	if absPath == path.Clean(s.root) {
		return fmt.Errorf("sftp rmdir %s: refusing to remove sync root", absPath)
	}
	if err := removeAllSFTP(ctx, s.client, absPath); err != nil {
		return fmt.Errorf("sftp rmdir %s: %w", absPath, err)
	}
	return nil
}

func (s *SFTPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.client.Close()
	if s.ssh != nil {
		if sshErr := s.ssh.Close(); sshErr != nil && err == nil {
			err = sshErr
		}
	}
	return err
}

// sftpFileInfoToEntry converts os.FileInfo from SFTP to a FileEntry.
func sftpFileInfoToEntry(info os.FileInfo) FileEntry {
	return FileEntry{
		Name:      info.Name(),
		Size:      info.Size(),
		Mode:      info.Mode(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
	}
}

// removeAllSFTP recursively removes a directory over SFTP.
func removeAllSFTP(ctx context.Context, client *sftp.Client, absPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := client.Lstat(absPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return client.Remove(absPath)
	}

	entries, err := client.ReadDir(absPath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childPath := path.Join(absPath, entry.Name())
		if entry.IsDir() {
			if err := removeAllSFTP(ctx, client, childPath); err != nil {
				return err
			}
		} else {
			if err := client.Remove(childPath); err != nil {
				return err
			}
		}
	}
	return client.RemoveDirectory(absPath)
}
