package mission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrDecode is returned when mission data cannot be decoded.
var ErrDecode = errors.New("invalid mission data")

type catalogFile struct {
	Missions []Mission `json:"missions"`
}

// Decode reads missions from r. Both a bare JSON array and an object with
// a "missions" array are accepted.
func Decode(r io.Reader) ([]Mission, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading mission data: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	if data[0] == '[' {
		var missions []Mission
		if err := json.Unmarshal(data, &missions); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return missions, nil
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return file.Missions, nil
}

// LoadFile reads missions from a JSON file.
func LoadFile(path string) ([]Mission, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mission file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Problem describes a catalog entry a validator flagged.
type Problem struct {
	Index int
	ID    ID
	Issue string
}

func (p Problem) String() string {
	return fmt.Sprintf("mission #%d (id %d): %s", p.Index, p.ID, p.Issue)
}

// Validate reports catalog issues: duplicate ids, missing names, invalid
// targets and unparseable areas. Nothing here stops a catalog from loading.
func Validate(missions []Mission) []Problem {
	var problems []Problem
	seen := make(map[ID]int, len(missions))

	for i, ms := range missions {
		if first, dup := seen[ms.ID]; dup {
			problems = append(problems, Problem{Index: i, ID: ms.ID, Issue: fmt.Sprintf("duplicate id, shadowed by entry #%d", first)})
		} else {
			seen[ms.ID] = i
		}
		if ms.Name == "" {
			problems = append(problems, Problem{Index: i, ID: ms.ID, Issue: "missing name"})
		}
		if ms.Target != nil && !ms.Target.Valid() {
			problems = append(problems, Problem{Index: i, ID: ms.ID, Issue: "target coordinate out of range"})
		}
		if ms.Radius < 0 {
			problems = append(problems, Problem{Index: i, ID: ms.ID, Issue: "negative radius"})
		}
		if _, _, err := ms.Region(1); err != nil {
			problems = append(problems, Problem{Index: i, ID: ms.ID, Issue: err.Error()})
		}
	}

	return problems
}
