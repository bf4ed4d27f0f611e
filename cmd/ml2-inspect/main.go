// Command ml2-inspect prints a health report for recorded sensor
// containers: record counts, timestamp spacing, estimated frame rate,
// pose plausibility, and truncation. It accepts individual files or a
// capture directory, and can index the results into a session database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/ml2raw/internal/mlraw/report"
	"github.com/banshee-data/ml2raw/internal/mlraw/sessiondb"
)

var dbPath = flag.String("db", "", "session database to index results into (optional)")

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: ml2-inspect [-db sessions.db] <file.bin | directory>...\n")
		os.Exit(1)
	}

	var sessions *sessiondb.SessionStore
	if *dbPath != "" {
		db, err := sessiondb.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open session database: %v", err)
		}
		defer db.Close()
		sessions = sessiondb.NewSessionStore(db)
	}

	failures := 0
	for _, arg := range flag.Args() {
		for _, path := range expand(arg) {
			if err := inspect(path, sessions); err != nil {
				log.Printf("ERROR analyzing %s: %v", path, err)
				failures++
			}
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// expand returns arg itself for a file, or every .bin inside it for a
// directory, sorted by name.
func expand(arg string) []string {
	info, err := os.Stat(arg)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return nil
	}
	if !info.IsDir() {
		return []string{arg}
	}

	entries, err := os.ReadDir(arg)
	if err != nil {
		log.Printf("ERROR reading %s: %v", arg, err)
		return nil
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".bin") {
			continue
		}
		paths = append(paths, filepath.Join(arg, e.Name()))
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		log.Printf("no .bin files found in %s", arg)
	}
	return paths
}

func inspect(path string, sessions *sessiondb.SessionStore) error {
	fmt.Printf("\n=== %s ===\n", filepath.Base(path))

	sum, err := report.Analyze(path, os.Stdout)
	if err != nil {
		return err
	}

	if sessions != nil {
		sess := &sessiondb.Session{
			Path:             path,
			Kind:             sum.Kind.String(),
			DeclaredVersion:  sum.DeclaredVersion,
			ResolvedVersion:  sum.ResolvedVersion,
			RecordCount:      sum.Records,
			FirstTimestampNs: sum.FirstTimestampNs,
			LastTimestampNs:  sum.LastTimestampNs,
			Truncated:        sum.Truncated,
		}
		if err := sessions.Insert(sess); err != nil {
			return err
		}
		fmt.Printf("Indexed as session %s\n", sess.SessionID)
	}
	return nil
}
