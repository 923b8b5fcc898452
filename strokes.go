package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"inpaint_backend/inpaint"
	"inpaint_backend/mask"
)

// StrokeScript replays drawing input without a browser. Each cycle draws
// its strokes and then inpaints; the first point of a stroke is a press,
// the rest are moves.
//
//	cycles:
//	  - strokes:
//	      - [{x: 40, y: 40}, {x: 120, y: 60}]
//	      - [{x: 10, y: 200}, {x: 10, y: 240}]
//	  - strokes: []
type StrokeScript struct {
	Cycles []ScriptCycle `yaml:"cycles"`
}

// ScriptCycle is the input for one inpaint.
type ScriptCycle struct {
	Strokes [][]mask.Point `yaml:"strokes"`
}

// LoadStrokeScript reads a script. Unknown keys are errors.
func LoadStrokeScript(path string) (*StrokeScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stroke script: %w", err)
	}
	var script StrokeScript
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&script); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse stroke script %s: %w", path, err)
	}
	if len(script.Cycles) == 0 {
		return nil, fmt.Errorf("stroke script %s has no cycles", path)
	}
	return &script, nil
}

// Draw feeds the cycle's strokes to s and returns how many points were
// accepted.
func (c ScriptCycle) Draw(s *inpaint.Session) (int, error) {
	accepted := 0
	for _, stroke := range c.Strokes {
		for i, pt := range stroke {
			var ok bool
			var err error
			if i == 0 {
				ok, err = s.Press(pt)
			} else {
				ok, err = s.Move(pt)
			}
			if err != nil {
				return accepted, err
			}
			if ok {
				accepted++
			}
		}
	}
	return accepted, nil
}
