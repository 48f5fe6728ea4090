// Package extract implements CodeExtractor (spec §4.C, component C): a
// three-tier cascade that pulls a single code block out of a model's final
// response text. The cascade-over-markdown-wrapping approach follows
// itsneelabh-gomind's orchestrator, which strips ```json fences and falls
// back to brace-matching when a model ignores its "no markdown" instruction;
// here the cascade instead looks for an explicit tag, then a fenced block,
// then a structural heuristic, because target code can legitimately contain
// backticks or imports that a naive fence-strip would mangle.
package extract

import (
	"errors"
	"regexp"
	"strings"
)

// Tier identifies which stage of the cascade produced a match.
type Tier string

const (
	TierTagged    Tier = "tagged"
	TierFenced    Tier = "fenced"
	TierHeuristic Tier = "heuristic"
)

// Result is a successful extraction: the code text and the tier that found it.
type Result struct {
	Code string
	Tier Tier
}

// ErrExtractionEmpty is returned when no tier of the cascade matches
// anything in the response text.
var ErrExtractionEmpty = errors.New("extract: no code block found in response")

var reTagged = regexp.MustCompile(`(?s)<CODE>\s*(.*?)\s*</CODE>`)

// executableLangs marks which fence language tags count as "executable
// script" per spec §4.C tier 2; an empty tag or a non-script tag (e.g.
// ```text, ```json) does not qualify.
var executableLangs = map[string]bool{
	"": true, "python": true, "py": true, "cadquery": true, "cadscript": true,
}

// entryPointSymbols are the documented entry points the heuristic tier
// looks for when bounding the end of a code region (spec §4.C tier 3).
var entryPointSymbols = []string{"show_object", "export", ".save(", "result ="}

// importPrefix is the target library's import statement the heuristic tier
// anchors on to find where generated code begins.
const importPrefix = "import cadscript"

// Extract runs the three-tier cascade over response text and reports which
// tier matched (spec §4.C: "records which tier matched on the Attempt").
func Extract(response string) (Result, error) {
	if m := reTagged.FindStringSubmatch(response); len(m) > 1 {
		code := strings.TrimSpace(m[1])
		if code != "" {
			return Result{Code: code, Tier: TierTagged}, nil
		}
	}

	if code, ok := extractFenced(response); ok {
		return Result{Code: code, Tier: TierFenced}, nil
	}

	if code, ok := extractHeuristic(response); ok {
		return Result{Code: code, Tier: TierHeuristic}, nil
	}

	return Result{}, ErrExtractionEmpty
}

func extractFenced(response string) (string, bool) {
	blocks := fenceBlocksWithLang(response)
	for _, b := range blocks {
		if !executableLangs[b.lang] {
			continue
		}
		code := strings.TrimSpace(b.body)
		if code != "" {
			return code, true
		}
	}
	return "", false
}

type fenceBlock struct {
	lang string
	body string
}

var reFenceOpen = regexp.MustCompile("(?m)^```([a-zA-Z0-9_+-]*)\\s*$")

// fenceBlocksWithLang finds triple-backtick fenced regions and their
// declared language tag, preserving document order so the first qualifying
// block wins (spec §4.C: "first triple-backtick fenced block").
func fenceBlocksWithLang(text string) []fenceBlock {
	var blocks []fenceBlock
	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) {
		m := reFenceOpen.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}
		lang := strings.ToLower(strings.TrimSpace(m[1]))
		var body []string
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) != "```" {
			body = append(body, lines[j])
			j++
		}
		blocks = append(blocks, fenceBlock{lang: lang, body: strings.Join(body, "\n")})
		i = j + 1
	}
	return blocks
}

// extractHeuristic implements tier 3: the longest contiguous region starting
// at the target library's import statement and ending at the last
// assignment or call to a documented entry-point symbol.
func extractHeuristic(response string) (string, bool) {
	start := strings.Index(response, importPrefix)
	if start < 0 {
		return "", false
	}
	tail := response[start:]

	end := -1
	for _, sym := range entryPointSymbols {
		if idx := strings.LastIndex(tail, sym); idx > end {
			lineEnd := strings.IndexByte(tail[idx:], '\n')
			if lineEnd < 0 {
				end = len(tail)
			} else if idx+lineEnd > end {
				end = idx + lineEnd
			}
		}
	}
	if end < 0 {
		return "", false
	}
	code := strings.TrimSpace(tail[:end])
	if code == "" {
		return "", false
	}
	return code, true
}
