package objects

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Labels maps model class ids to names.
type Labels map[int]string

// DefaultLabels returns the label map of the road-sign model.
func DefaultLabels() Labels {
	return Labels{
		0: "Green Traffic Light",
		1: "Person",
		2: "Red Traffic Light",
		3: "Speed Limit 25",
		4: "Speed Limit 40",
		5: "Stop",
	}
}

// LoadLabels reads a label file from disk.
func LoadLabels(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	return ParseLabels(f)
}

// ParseLabels parses "<id> <name>" lines, split at the first space or tab.
// Blank lines are skipped.
func ParseLabels(r io.Reader) (Labels, error) {
	labels := make(Labels)
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sep := strings.IndexFunc(line, unicode.IsSpace)
		if sep < 0 {
			return nil, fmt.Errorf("labels line %d: missing name in %q", lineNo, line)
		}
		idText, name := line[:sep], line[sep+1:]

		id, err := strconv.Atoi(idText)
		if err != nil {
			return nil, fmt.Errorf("labels line %d: bad class id %q: %w", lineNo, idText, err)
		}

		labels[id] = strings.TrimSpace(name)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	return labels, nil
}

// Name returns the label for id, or "class <id>" when unknown.
func (l Labels) Name(id int) string {
	if name, ok := l[id]; ok {
		return name
	}
	return fmt.Sprintf("class %d", id)
}

// IDs returns the class ids in ascending order.
func (l Labels) IDs() []int {
	ids := make([]int, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
