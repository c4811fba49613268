package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreamware/substrate/internal/store"
)

func newStoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "store",
		Short: "exercise an in-memory radix store interactively",
		Long: `Reads commands from stdin, one per line, against a single store
built from the configured key-bytes/bits/lifespan:

  put <hexkey> <value>
  get <hexkey>
  del <hexkey>
  prune
  stats
  quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.New(cfg.Store.KeyBytes, cfg.Store.Bits, cfg.Store.Lifespan)
			if err != nil {
				return err
			}
			defer s.Terminate()
			return storeREPL(cmd.InOrStdin(), cmd.OutOrStdout(), s, cfg.Store.KeyBytes)
		},
	}
}

func storeREPL(in io.Reader, out io.Writer, s *store.Store, keyBytes int) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "put":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: put <hexkey> <value>")
				continue
			}
			key, err := parseKey(fields[1], keyBytes)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, s.Add(key, fields[2], nil))
		case "get":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: get <hexkey>")
				continue
			}
			key, err := parseKey(fields[1], keyBytes)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			found := s.Find(key, func(_ []byte, value any) {
				fmt.Fprintln(out, value)
			})
			if !found {
				fmt.Fprintln(out, "not found")
			}
		case "del":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: del <hexkey>")
				continue
			}
			key, err := parseKey(fields[1], keyBytes)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, s.Delete(key))
		case "prune":
			s.Prune()
			fmt.Fprintln(out, "ok")
		case "stats":
			fmt.Fprintf(out, "live nodes: %d, max depth: %d\n", s.LiveNodes(), s.Depth())
		case "quit":
			return nil
		default:
			fmt.Fprintln(out, "unknown command:", fields[0])
		}
	}
	return scanner.Err()
}

func parseKey(s string, keyBytes int) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key %q is not hex: %w", s, err)
	}
	if len(key) != keyBytes {
		return nil, fmt.Errorf("key %q is %d bytes, store wants %d", s, len(key), keyBytes)
	}
	return key, nil
}
