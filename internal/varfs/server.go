package varfs

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// Server serves a filesystem over NFSv3.
type Server struct {
	listener net.Listener
	port     int
}

// NewServer starts an NFS server for fs on addr. An addr of ":0" picks a
// free port.
func NewServer(fs billy.Filesystem, addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen %s: %w", addr, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	handler := nfshelper.NewNullAuthHandler(fs)
	cacheHelper := nfshelper.NewCachingHandler(handler, 4096)

	go func() {
		_ = nfs.Serve(listener, cacheHelper)
	}()

	return &Server{listener: listener, port: port}, nil
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops the server.
func (s *Server) Close() error {
	return s.listener.Close()
}

// MountArgs returns the mount command for a server on port at mountpoint.
func MountArgs(port int, mountpoint string, writable bool) ([]string, error) {
	var opts string
	switch runtime.GOOS {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport", port, port)
		if !writable {
			opts += ",rdonly"
		}
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,local_lock=all,nolock", port, port)
		if !writable {
			opts += ",ro"
		}
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return []string{"sudo", "mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint}, nil
}

// Mount mounts the server on port at mountpoint with the system mount
// command.
func Mount(port int, mountpoint string, writable bool) error {
	args, err := MountArgs(port, mountpoint, writable)
	if err != nil {
		return err
	}
	output, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, string(output))
	}
	return nil
}

// Unmount unmounts mountpoint.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	output, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, string(output))
	}
	return nil
}
