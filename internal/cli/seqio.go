package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// readSequence loads a sequence from a plain-text or FASTA file, or
// from stdin when path is "-". The returned id comes from the FASTA
// header when present, otherwise from the file name.
func readSequence(path string) (id, text string, err error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
		id = "stdin"
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", "", fmt.Errorf("open sequence: %w", err)
		}
		defer f.Close()
		r = f
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var sb strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), 64<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if sb.Len() > 0 {
				break // first record only
			}
			if name := strings.Fields(line[1:]); len(name) > 0 {
				id = name[0]
			}
			continue
		}
		sb.WriteString(strings.ToUpper(line))
	}
	if err := sc.Err(); err != nil {
		return "", "", fmt.Errorf("read sequence: %w", err)
	}
	if sb.Len() == 0 {
		return "", "", fmt.Errorf("no sequence data in %s", path)
	}
	return id, sb.String(), nil
}

// writePNG encodes an image to a file.
func writePNG(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode image: %w", err)
	}
	return f.Close()
}
