// ABOUTME: Minimal fake MCP server for E2E testing — reads commands on stdin, answers on stdout.
// ABOUTME: Usage: fake-mcp-server [-delay 0s] [-blank] [-fail-after N] [-exit-after N]

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

func main() {
	delay := flag.Duration("delay", 0, "Delay before each response")
	blank := flag.Bool("blank", false, "Respond with an empty line instead of echoing")
	failAfter := flag.Int("fail-after", 0, "Exit with status 1 after N commands (0 = never)")
	exitAfter := flag.Int("exit-after", 0, "Exit cleanly after N commands (0 = never)")
	prefix := flag.String("prefix", "", "Prefix prepended to each echoed response")
	flag.Parse()

	if err := run(*delay, *blank, *failAfter, *exitAfter, *prefix); err != nil {
		log.Fatal(err)
	}
}

func run(delay time.Duration, blank bool, failAfter, exitAfter int, prefix string) error {
	fmt.Fprintln(os.Stderr, "fake-mcp-server ready")

	scanner := bufio.NewScanner(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	count := 0

	for scanner.Scan() {
		line := scanner.Text()
		count++

		log.Printf("received command %d: %s", count, line)

		if delay > 0 {
			time.Sleep(delay)
		}

		if blank {
			fmt.Fprintln(out)
		} else {
			fmt.Fprintln(out, prefix+line)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("flushing response: %w", err)
		}

		if failAfter > 0 && count >= failAfter {
			fmt.Fprintln(os.Stderr, "fake-mcp-server failing on purpose")
			os.Exit(1)
		}
		if exitAfter > 0 && count >= exitAfter {
			return nil
		}
	}
	return scanner.Err()
}
