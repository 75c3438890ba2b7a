// Package parser turns tagged text returned by a generative service into step records.
//
// A step block is six ordered tag pairs:
//
//	<工程名>title</工程名>
//	<概要>description</概要>
//	<担当者>assignee or 自動化</担当者>
//	<所要時間>minutes</所要時間>
//	<ツール>tools or empty</ツール>
//	<コスト>cost hint or なし</コスト>
//
// Text between tags is ignored. A value may contain any text except its own
// closing tag. A block missing any tag is skipped.
package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/kaizen-works/kaizen/pkg/models"
	"golang.org/x/text/width"
)

// DefaultDurationMinutes is used when neither the text nor a fallback step yields a duration.
const DefaultDurationMinutes = 30

const blockStartTag = "<工程名>"

type tagPair struct {
	open  string
	close string
}

func pair(name string) tagPair {
	return tagPair{open: "<" + name + ">", close: "</" + name + ">"}
}

// blockTags lists the pairs of a block in the order they must appear.
var blockTags = [...]tagPair{
	pair("工程名"),
	pair("概要"),
	pair("担当者"),
	pair("所要時間"),
	pair("ツール"),
	pair("コスト"),
}

// ParsedStep is a step extracted from tagged text before cost resolution.
type ParsedStep struct {
	Title               string
	Description         string
	Assignee            string
	TimeRequiredMinutes int
	ToolsText           string
	CostHintText        string
}

// Parse extracts every well-formed step block from raw in document order.
// Unreadable durations fall back to the step at the same index of fallback, or
// to DefaultDurationMinutes.
func Parse(raw string, fallback []models.Step) ([]ParsedStep, error) {
	var steps []ParsedStep

	rest := raw
	for {
		start := strings.Index(rest, blockStartTag)
		if start < 0 {
			break
		}

		rest = rest[start:]

		values, n, ok := scanBlock(rest)
		if !ok {
			rest = rest[len(blockStartTag):]

			continue
		}

		rest = rest[n:]

		index := len(steps)
		steps = append(steps, ParsedStep{
			Title:               strings.TrimSpace(values[0]),
			Description:         strings.TrimSpace(values[1]),
			Assignee:            strings.TrimSpace(values[2]),
			TimeRequiredMinutes: durationOrFallback(values[3], index, fallback),
			ToolsText:           strings.TrimSpace(values[4]),
			CostHintText:        strings.TrimSpace(values[5]),
		})
	}

	if len(steps) == 0 {
		return nil, &ParseError{Op: "Parse", InputLen: len(raw), Err: ErrNoStructuredSteps}
	}

	return steps, nil
}

// scanBlock reads the tag pairs of the block at the start of text and returns
// their values and the length of text consumed. A value ends at its closing
// tag. A block start in the text between two pairs means the block is
// incomplete, so it never borrows tags from the block that follows it.
func scanBlock(text string) ([len(blockTags)]string, int, bool) {
	var values [len(blockTags)]string

	pos := 0
	for i, tag := range blockTags {
		at := strings.Index(text[pos:], tag.open)
		if at < 0 || strings.Contains(text[pos:pos+at], blockStartTag) {
			return values, 0, false
		}

		pos += at + len(tag.open)

		end := strings.Index(text[pos:], tag.close)
		if end < 0 {
			return values, 0, false
		}

		values[i] = text[pos : pos+end]
		pos += end + len(tag.close)
	}

	return values, pos, true
}

func durationOrFallback(text string, index int, fallback []models.Step) int {
	if minutes, ok := ParseMinutes(text); ok {
		return minutes
	}

	if index < len(fallback) {
		return fallback[index].TimeRequiredMinutes
	}

	return DefaultDurationMinutes
}

// ParseMinutes reads the leading integer of text, accepting full-width digits
// and trailing units such as "30分".
func ParseMinutes(text string) (int, bool) {
	narrowed := strings.TrimSpace(width.Narrow.String(text))

	end := strings.IndexFunc(narrowed, func(r rune) bool {
		return r > unicode.MaxASCII || !unicode.IsDigit(r)
	})
	if end < 0 {
		end = len(narrowed)
	}

	if end == 0 {
		return 0, false
	}

	minutes, err := strconv.Atoi(narrowed[:end])
	if err != nil {
		return 0, false
	}

	return minutes, true
}
