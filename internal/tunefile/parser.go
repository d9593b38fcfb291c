// Package tunefile parses plain-text tune files and fingerprints their
// content. A file holds one or more tunes separated by "---":
//
//	T: The Banshee
//	G: irish
//	N: Start slowly, the B part swings.
//	R: https://example.com/banshee.abc
package tunefile

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	titlePrefix = "T:"
	genrePrefix = "G:"
	notePrefix  = "N:"
	refPrefix   = "R:"
)

type state int

const (
	seeking state = iota
	readingNote
)

// Tune is one parsed tune-file entry.
type Tune struct {
	Title string
	Genre string
	Notes []string
	Refs  []string
}

// ParseFile reads a file from the given path and extracts all tunes.
func ParseFile(path string) ([]Tune, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all tunes.
func Parse(r io.Reader) ([]Tune, error) {
	scanner := bufio.NewScanner(r)
	var tunes []Tune
	var current Tune
	var noteBlock []string
	currentState := seeking

	flushNote := func() {
		if len(noteBlock) > 0 {
			current.Notes = append(current.Notes, strings.Join(noteBlock, "\n"))
			noteBlock = nil
		}
		currentState = seeking
	}

	finishTune := func() {
		flushNote()
		if current.Title != "" {
			tunes = append(tunes, current)
		}
		current = Tune{}
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishTune()
			continue
		}

		switch {
		case strings.HasPrefix(line, titlePrefix):
			if current.Title != "" { // a new title always starts a new tune
				finishTune()
			} else {
				flushNote()
			}
			current.Title = trimPrefix(line, titlePrefix)
		case strings.HasPrefix(line, genrePrefix):
			flushNote()
			current.Genre = trimPrefix(line, genrePrefix)
		case strings.HasPrefix(line, refPrefix):
			flushNote()
			if url := trimPrefix(line, refPrefix); url != "" {
				current.Refs = append(current.Refs, url)
			}
		case strings.HasPrefix(line, notePrefix):
			flushNote()
			noteBlock = append(noteBlock, trimPrefix(line, notePrefix))
			currentState = readingNote
		case currentState == readingNote && strings.TrimSpace(line) != "":
			noteBlock = append(noteBlock, line)
		default:
			flushNote()
		}
	}

	finishTune() // finish the very last tune in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return tunes, nil
}

func trimPrefix(line, prefix string) string {
	content := line[len(prefix):]
	if strings.HasPrefix(content, " ") {
		content = content[1:]
	}
	return content
}
