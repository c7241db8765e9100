package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/templui/authapi/cmd/do/cmd"
)

func main() {
	if exe, ok := staleBinary(); ok {
		rebuildAndExec(exe)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "do",
		Short: "Chores around the authapi service",
		Long: `do runs the server with hot reload, migrates the users schema and
sweeps expired password reset tokens.

Commands read the same .env and DB_DRIVER / DB_CONNECTION settings as the server.`,
		SilenceUsage: true,
	}

	root.AddGroup(
		&cobra.Group{ID: "dev", Title: "Development:"},
		&cobra.Group{ID: "db", Title: "Database:"},
	)

	dev := cmd.DevCmd()
	dev.GroupID = "dev"
	root.AddCommand(dev)

	for _, c := range []*cobra.Command{cmd.MigrateCmd(), cmd.PurgeResetTokensCmd()} {
		c.GroupID = "db"
		root.AddCommand(c)
	}

	return root
}

// staleBinary reports whether bin/do is older than any Go source it is built
// from. The commands import internal/, so that tree counts too.
func staleBinary() (string, bool) {
	exe, err := os.Executable()
	if err != nil || !strings.HasSuffix(exe, "bin/do") {
		return "", false
	}

	info, err := os.Stat(exe)
	if err != nil {
		return "", false
	}
	builtAt := info.ModTime()

	for _, root := range []string{"cmd/do", "internal"} {
		if newerSource(root, builtAt) {
			return exe, true
		}
	}
	return "", false
}

func newerSource(root string, than time.Time) bool {
	newer := false
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		info, err := d.Info()
		if err == nil && info.ModTime().After(than) {
			newer = true
			return filepath.SkipAll
		}
		return nil
	})
	return newer
}

func rebuildAndExec(exe string) {
	fmt.Println("bin/do is out of date, rebuilding...")
	build := exec.Command("go", "build", "-o", exe, "./cmd/do")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Println("rebuild failed, running the old binary:", err)
		return
	}

	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		fmt.Println("re-exec failed:", err)
	}
}
