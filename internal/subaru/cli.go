package subaru

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: subaru <command> [arguments]")
	colSuccess.Println("Run 'subaru <command> -h' for command options")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"build, b", "[-f] [-t table] [-p prefix] [-j jobs]", "Build every package in the descriptor table"},
		{"list, ls", "[filter]", "List packages built into the prefix"},
		{"pack", "[-o file]", "Snapshot the prefix into a .tar.zst archive"},
		{"version, --version", "", "Version information"},
		{"help", "", "Show this help"},
	}

	// Find the longest usage string to size the first column.
	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

// askForConfirmation prompts with [Y/n]. Non-interactive runs (no TTY on
// stdin) auto-answer yes so unattended rebuilds do not hang.
func askForConfirmation(format string, a ...any) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	reader := bufio.NewReader(os.Stdin)
	prompt := fmt.Sprintf(format, a...)
	for {
		cPrintf(colArrow, "%s [Y/n]: ", prompt)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "", "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

// Main is the CLI entrypoint for cmd/subaru.
func Main() {
	// 1. CONTEXT AND SIGNAL SETUP
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	// Signal handling: graceful cancel on the first interrupt, forced exit
	// on the second. During the critical receipt phase the first interrupt
	// only warns.
	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					fmt.Printf("\n[WARNING] Critical operation in progress. Press Ctrl+C AGAIN to force exit NOW.\n")
					select {
					case <-sigs:
						fmt.Println("\n[FATAL] Forced immediate exit.")
						os.Exit(130)
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				} else {
					fmt.Printf("\n[INFO] Received %v. Cancelling process gracefully...\n", sig)
					cancel()
					time.Sleep(100 * time.Millisecond)
					select {
					case <-sigs:
						fmt.Println("\n[FATAL] Second interrupt received. Forcing immediate exit.")
						os.Exit(130)
					case <-time.After(500 * time.Millisecond):
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		colWarn.Printf("Warning: could not read %s: %v\n", ConfigFile, err)
	}
	initConfig(cfg)

	BuildExec = &Executor{Context: ctx}

	switch os.Args[1] {
	case "version", "--version":
		fmt.Printf("subaru %s (%s, built %s)\n", version, arch, buildDate)

	case "build", "b":
		buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
		force := buildCmd.Bool("f", false, "force rebuild even when completion markers exist")
		table := buildCmd.String("t", "", "descriptor table file (default: config or embedded table)")
		prefix := buildCmd.String("p", "", "install prefix override")
		jobs := buildCmd.Int("j", 0, "make job count override")
		verbose := buildCmd.Bool("v", false, "verbose output")
		nice := buildCmd.Bool("idle", false, "run build tools at idle priority")
		buildCmd.Parse(os.Args[2:])

		if *prefix != "" {
			Prefix = *prefix
			ReceiptDir = filepath.Join(Prefix, "var", "db", "subaru")
		}
		if *jobs > 0 {
			JobCount = *jobs
		}
		if *verbose {
			Verbose = true
			Debug = true
		}
		BuildExec.ApplyIdlePriority = *nice

		tablePath := TablePath
		if *table != "" {
			tablePath = *table
		}

		pkgs, err := loadTable(tablePath)
		if err != nil {
			colError.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(pkgs) == 0 {
			colWarn.Println("Descriptor table is empty, nothing to do")
			return
		}

		if *force {
			if !askForConfirmation("Force rebuild will ignore completion markers for %d package(s). Continue?", len(pkgs)) {
				colInfo.Println("Aborted")
				return
			}
		}

		colArrow.Print("-> ")
		colSuccess.Printf("Building %d package(s) into %s (%d jobs)\n", len(pkgs), Prefix, JobCount)

		if err := RunTable(pkgs, cfg, RunOptions{Force: *force}); err != nil {
			colError.Printf("Error: %v\n", err)
			os.Exit(1)
		}

	case "list", "ls":
		filter := ""
		if len(os.Args) >= 3 {
			filter = os.Args[2]
		}
		if err := listReceipts(filter); err != nil {
			colError.Printf("Error: %v\n", err)
			os.Exit(1)
		}

	case "pack":
		packCmd := flag.NewFlagSet("pack", flag.ExitOnError)
		out := packCmd.String("o", "", "output snapshot path")
		packCmd.Parse(os.Args[2:])
		if err := packPrefix(*out); err != nil {
			colError.Printf("Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printHelp()

	default:
		colError.Printf("Unknown command: %s\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}
