// Package labels turns DCASE-style polar metadata into frame-level SED and
// DOA target arrays.
package labels

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
)

// Event is one metadata row: a source of Class active at Frame.
// Angles are in degrees.
type Event struct {
	Frame     int
	Class     int
	Track     int
	Azimuth   float64
	Elevation float64
	Distance  float64
}

// DOAFormat selects the layout of the DOA target array.
type DOAFormat int

const (
	// DOAXYZ gives (frames, 3*classes): all x, then all y, then all z.
	DOAXYZ DOAFormat = iota
	// DOAPolar gives (frames, classes, 2) holding azimuth and elevation in radians.
	DOAPolar
)

func ParseDOAFormat(s string) (DOAFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xyz":
		return DOAXYZ, nil
	case "polar":
		return DOAPolar, nil
	}
	return 0, fmt.Errorf("unknown doa format %q (want xyz or polar)", s)
}

// ParseMetadata reads rows of frame,class,track,azimuth,elevation[,distance].
// A non-numeric first row is treated as a header.
func ParseMetadata(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var events []Event
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 fields, got %d", line, len(row))
		}
		ev, err := parseRow(row)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func ReadMetadataFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	events, err := ParseMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

func parseRow(row []string) (Event, error) {
	var ev Event
	var err error
	ints := []*int{&ev.Frame, &ev.Class, &ev.Track}
	for i, dst := range ints {
		if *dst, err = strconv.Atoi(strings.TrimSpace(row[i])); err != nil {
			return Event{}, err
		}
	}
	floats := []*float64{&ev.Azimuth, &ev.Elevation}
	if len(row) > 5 {
		floats = append(floats, &ev.Distance)
	}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(strings.TrimSpace(row[3+i]), 64); err != nil {
			return Event{}, err
		}
	}
	return ev, nil
}

// Targets rasterizes events into nFrames label frames. Events at or past
// nFrames are dropped; when several tracks of one class overlap, the first
// listed wins the DOA slot.
func Targets(events []Event, nFrames, nClasses int, format DOAFormat) (sed, doa *ndarray.Array, err error) {
	if nFrames < 0 || nClasses <= 0 {
		return nil, nil, fmt.Errorf("invalid target shape: %d frames, %d classes", nFrames, nClasses)
	}

	sed = ndarray.New(nFrames, nClasses)
	switch format {
	case DOAXYZ:
		doa = ndarray.New(nFrames, 3*nClasses)
	case DOAPolar:
		doa = ndarray.New(nFrames, nClasses, 2)
	default:
		return nil, nil, fmt.Errorf("unknown doa format %d", format)
	}

	for _, ev := range events {
		if ev.Class < 0 || ev.Class >= nClasses {
			return nil, nil, fmt.Errorf("frame %d: class %d not in [0, %d)", ev.Frame, ev.Class, nClasses)
		}
		if ev.Frame < 0 || ev.Frame >= nFrames {
			continue
		}
		if sed.At(ev.Frame, ev.Class) == 1 {
			continue
		}
		sed.Set(1, ev.Frame, ev.Class)

		az := ev.Azimuth * math.Pi / 180
		el := ev.Elevation * math.Pi / 180
		switch format {
		case DOAXYZ:
			doa.Set(float32(math.Cos(el)*math.Cos(az)), ev.Frame, ev.Class)
			doa.Set(float32(math.Cos(el)*math.Sin(az)), ev.Frame, nClasses+ev.Class)
			doa.Set(float32(math.Sin(el)), ev.Frame, 2*nClasses+ev.Class)
		case DOAPolar:
			doa.Set(float32(az), ev.Frame, ev.Class, 0)
			doa.Set(float32(el), ev.Frame, ev.Class, 1)
		}
	}
	return sed, doa, nil
}
