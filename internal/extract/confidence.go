package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/fieldsnap/internal/model"
)

// Tesseract TSV columns.
const (
	tsvLevel = iota
	tsvPage
	tsvBlock
	tsvPar
	tsvLine
	tsvWord
	tsvLeft
	tsvTop
	tsvWidth
	tsvHeight
	tsvConf
	tsvText
	tsvColumns
)

// tsvWordLevel is the TSV level of individual words.
const tsvWordLevel = 5

// Word is one recognised word from tesseract TSV output.
type Word struct {
	Text       string
	Confidence float64 // 0-100
	Block      int
	Par        int
	Line       int
	Box        model.BoundingBox
}

func (w Word) lineKey() string {
	return fmt.Sprintf("%d/%d/%d", w.Block, w.Par, w.Line)
}

// ParseTSV reads word rows from tesseract TSV output. Header, layout and
// malformed rows are skipped.
func ParseTSV(tsv string) []Word {
	var words []Word
	for _, row := range strings.Split(tsv, "\n") {
		cols := strings.Split(strings.TrimRight(row, "\r"), "\t")
		if len(cols) < tsvColumns {
			continue
		}
		level, err := strconv.Atoi(cols[tsvLevel])
		if err != nil || level != tsvWordLevel {
			continue
		}
		conf, err := strconv.ParseFloat(cols[tsvConf], 64)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[tsvText:], "\t"))
		if text == "" {
			continue
		}
		w := Word{
			Text:       text,
			Confidence: conf,
			Block:      atoi(cols[tsvBlock]),
			Par:        atoi(cols[tsvPar]),
			Line:       atoi(cols[tsvLine]),
		}
		w.Box = model.BoundingBox{
			Text:       text,
			X:          atoi(cols[tsvLeft]),
			Y:          atoi(cols[tsvTop]),
			Width:      atoi(cols[tsvWidth]),
			Height:     atoi(cols[tsvHeight]),
			Confidence: conf / 100,
		}
		words = append(words, w)
	}
	return words
}

// MinWordConfidence returns the word filter threshold (0-100) for a page
// segmentation mode: strict for single line, single word and raw line,
// lenient for sparse text.
func MinWordConfidence(psm int) float64 {
	switch psm {
	case 7, 8, 13:
		return 60
	case 11, 12:
		return 30
	default:
		return 45
	}
}

// Recognition is the summarized output of one tesseract run.
type Recognition struct {
	Text          string
	Confidence    float64
	BoundingBoxes []model.BoundingBox
}

// Summarize filters words by the mode's threshold, rebuilds the text line
// by line and computes overall confidence as
// 0.7*avgFiltered + 0.3*engine, clamped to [0.1, 1]. The engine
// confidence is the mean over all scored words.
func Summarize(words []Word, psm int) Recognition {
	minConf := MinWordConfidence(psm)

	var (
		engineSum, filteredSum float64
		engineN                int
		lines                  []string
		current                []string
		currentKey             string
		boxes                  []model.BoundingBox
	)
	flush := func() {
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = nil
		}
	}

	for _, w := range words {
		if w.Confidence < 0 {
			continue
		}
		engineSum += w.Confidence
		engineN++
		if w.Confidence < minConf {
			continue
		}
		if key := w.lineKey(); key != currentKey {
			flush()
			currentKey = key
		}
		current = append(current, w.Text)
		filteredSum += w.Confidence
		boxes = append(boxes, w.Box)
	}
	flush()

	var engine, avgFiltered float64
	if engineN > 0 {
		engine = engineSum / float64(engineN) / 100
	}
	if len(boxes) > 0 {
		avgFiltered = filteredSum / float64(len(boxes)) / 100
	}

	return Recognition{
		Text:          strings.Join(lines, "\n"),
		Confidence:    clamp(0.7*avgFiltered+0.3*engine, 0.1, 1.0),
		BoundingBoxes: boxes,
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
