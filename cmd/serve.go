package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ggpk/internal/ggpkfs"
)

var serveMountpoint string

var serveCmd = &cobra.Command{
	Use:   "serve <archive>",
	Short: "Serve an archive read-only over NFS, optionally mounting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		srv, err := ggpkfs.NewServer(ggpkfs.New(a))
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		fmt.Printf("NFS server for %s listening on localhost:%d\n", args[0], srv.Port())

		if serveMountpoint != "" {
			if err := ggpkfs.Mount(srv.Port(), serveMountpoint); err != nil {
				return err
			}
			fmt.Printf("Mounted at %s\n", serveMountpoint)
			defer func() {
				if err := ggpkfs.Unmount(serveMountpoint); err != nil {
					fmt.Println(err)
				}
			}()
		}

		// Serve until interrupted.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		fmt.Println("shutting down")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveMountpoint, "mount", "m", "", "Mount the served archive at this directory")
	rootCmd.AddCommand(serveCmd)
}
