package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive prompt; each line runs as a sysrecon command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		printBanner()
		return runShell(cmd.InOrStdin(), cmd.OutOrStdout(), func(args []string) error {
			c := exec.Command(filepath.Clean(exe), args...)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			c.Stdin = os.Stdin
			return c.Run()
		})
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// runShell membaca baris dari in dan menjalankan run(args) untuk tiap baris.
// Built-in: help, exit, quit. EOF keluar tanpa error.
func runShell(in io.Reader, out io.Writer, run func(args []string) error) error {
	rd := bufio.NewScanner(in)

	fmt.Fprintln(out, "Type commands below (same as CLI arguments). Examples:")
	printShellHelp(out)

	for {
		fmt.Fprint(out, pterm.FgCyan.Sprint("SYSRECON")+"> ")
		if !rd.Scan() {
			fmt.Fprintln(out)
			return rd.Err()
		}
		line := strings.TrimSpace(rd.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			return nil
		case "help", "-h", "--help":
			printShellHelp(out)
			continue
		}

		// "sysrecon scan ..." -> buang token pertama
		args := splitCommandLine(line)
		if len(args) > 0 {
			a0 := strings.ToLower(filepath.Base(args[0]))
			if a0 == "sysrecon" || a0 == "sysrecon.exe" {
				args = args[1:]
			}
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "shell" {
			fmt.Fprintln(out, "already in the shell")
			continue
		}

		if err := run(args); err != nil {
			fmt.Fprintf(out, "[error] %v\n", err)
		}
		fmt.Fprintln(out)
	}
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, "  scan --quick")
	fmt.Fprintln(out, "  scan --modules services,registry --format json")
	fmt.Fprintln(out, "  memory --pid 4242 --dump suspect.bin")
	fmt.Fprintln(out, "  config")
	fmt.Fprintln(out, "Built-ins: help, exit, quit")
	fmt.Fprintln(out)
}

// splitCommandLine memecah input menjadi argumen (mendukung kutip "...").
func splitCommandLine(s string) []string {
	args := []string{}
	cur := strings.Builder{}
	inQuote := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			inQuote = !inQuote
		case ' ', '\t':
			if inQuote {
				cur.WriteByte(c)
			} else if cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args
}
