package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/vartree/internal/nv"
	"github.com/agentic-research/vartree/internal/snapshot"
	"github.com/agentic-research/vartree/internal/varfs"
)

var (
	serveFromSnapshot bool
	serveSaveOnExit   bool
)

func init() {
	serveCmd.Flags().BoolVar(&serveFromSnapshot, "from-snapshot", false, "Start from the snapshot database instead of input files")
	serveCmd.Flags().BoolVar(&serveSaveOnExit, "save-on-exit", false, "Save the variables to the snapshot database on shutdown")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [file...]",
	Short: "Serve the variables as a filesystem over NFSv3",
	Long: `serve exposes the variables as a filesystem: compound variables and
arrays are directories, values are files, and /_tree holds everything in
canonical form. With --writable, writing a file assigns the variable when
the file is closed, rm unsets it and mv moves it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			s   *nv.Store
			err error
		)
		if serveFromSnapshot {
			s, err = loadSnapshot()
		} else {
			s, err = loadInputs(args, cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		ro, err := opts.RenderOptions()
		if err != nil {
			return err
		}

		fsOpts := []varfs.Option{varfs.WithLayout(ro.Layout), varfs.WithLogger(logger)}
		if opts.Writable {
			fsOpts = append(fsOpts, varfs.Writable())
		}
		vfs := varfs.New(s, s.Global(), fsOpts...)

		srv, err := varfs.NewServer(vfs, opts.ListenAddr)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		logger.Info("nfs server started", "addr", srv.Addr(), "writable", opts.Writable)
		fmt.Fprintf(cmd.OutOrStdout(), "NFS server listening on %s\n", srv.Addr())

		if opts.MountPoint != "" {
			if err := varfs.Mount(srv.Port(), opts.MountPoint, opts.Writable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mounted at %s\n", opts.MountPoint)
			defer func() {
				if err := varfs.Unmount(opts.MountPoint); err != nil {
					logger.Error(err, "unmount failed", "mount", opts.MountPoint)
				}
			}()
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()
		logger.Info("shutting down")

		if serveSaveOnExit {
			return vfs.Do(func(s *nv.Store, sc *nv.Scope) error {
				db, err := snapshot.Open(opts.DBPath)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				n, err := db.Save(s, sc)
				if err == nil {
					logger.Info("saved snapshot", "db", opts.DBPath, "variables", n)
				}
				return err
			})
		}
		return nil
	},
}

func loadSnapshot() (*nv.Store, error) {
	db, err := snapshot.Open(opts.DBPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	s := newStore()
	if _, err := db.Load(s, s.Global()); err != nil {
		return nil, err
	}
	return s, nil
}
