package moderation

import (
	"bufio"
	"bytes"
	"chat-relay/errors"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// Dictionary is the set of censored words, with the languages they came from.
type Dictionary struct {
	Words     []string
	Languages []string
}

// LoadDictionary reads every <lang>.txt file under dir, one word per line.
func LoadDictionary(fsys fs.FS, dir string) (Dictionary, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return Dictionary{}, err
	}

	unique := make(map[string]struct{})
	var languages []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return Dictionary{}, err
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if word := strings.TrimSpace(scanner.Text()); word != "" && !strings.HasPrefix(word, "#") {
				unique[word] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return Dictionary{}, err
		}
	}
	if len(unique) == 0 {
		return Dictionary{}, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	sort.Strings(words)
	return Dictionary{Words: words, Languages: languages}, nil
}

// DefaultDictionary loads the word lists shipped with the binary.
func DefaultDictionary() (Dictionary, error) {
	return LoadDictionary(censoredFolder, "censored")
}

// Shorter or less confident detections are too noisy to be reported.
const (
	minDetectLength = 24
	minConfidence   = 0.5
)

// DetectLanguage returns the ISO 639-1 code of text, or an empty string when
// text is short or the detection is not confident enough.
func DetectLanguage(text string) string {
	if utf8.RuneCountInString(text) < minDetectLength {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Confidence < minConfidence {
		return ""
	}
	return info.Lang.Iso6391()
}
