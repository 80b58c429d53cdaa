package geostat

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	geom "github.com/flywave/go-geom"
	"github.com/flywave/go-geom/general"
	vec3d "github.com/flywave/go3d/float64/vec3"
	UTM "github.com/im7mortal/UTM"
)

// TableOptions configures ReadTable.
type TableOptions struct {
	// Comma is the field delimiter. Zero picks tab when the header holds
	// one, comma otherwise.
	Comma rune
	// Frame overrides the frame of the dataset. For lon/lat tables it
	// defaults to the UTM zone of the samples.
	Frame Frame
	// Attributes are the value columns. Nil takes every non-coordinate
	// column whose first value is numeric.
	Attributes []string
	// UnitScale divides projected UTM metres. Zero means 1000, giving
	// kilometres.
	UnitScale float64
}

var coordColumns = map[string]bool{
	"x": true, "y": true, "z": true,
	"lon": true, "lat": true, "longitude": true, "latitude": true,
}

// ReadTable reads samples from a delimited table with a header row. The
// coordinates come from x, y and optional z columns, or from lon/lat
// columns projected to UTM. Lines starting with '#' are ignored.
func ReadTable(r io.Reader, opts TableOptions) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading table")
	}
	tsv := csv.NewReader(bytes.NewReader(data))
	tsv.Comma = opts.Comma
	if tsv.Comma == 0 {
		tsv.Comma = ','
		first, _, _ := bytes.Cut(data, []byte("\n"))
		if bytes.ContainsRune(first, '\t') {
			tsv.Comma = '\t'
		}
	}
	tsv.Comment = '#'
	tsv.TrimLeadingSpace = true

	head, err := tsv.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading table header")
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		fields[strings.ToLower(strings.TrimSpace(h))] = i
	}
	col := func(names ...string) int {
		for _, n := range names {
			if i, ok := fields[n]; ok {
				return i
			}
		}
		return -1
	}
	xi, yi, zi := col("x"), col("y"), col("z")
	lonI, latI := col("lon", "longitude"), col("lat", "latitude")
	geographic := xi < 0 || yi < 0
	if geographic && (lonI < 0 || latI < 0) {
		return nil, newMalformed(-1, "table needs x and y, or lon and lat columns")
	}

	rows, err := tsv.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading table")
	}
	if len(rows) == 0 {
		return nil, newMalformed(-1, "no samples")
	}

	attrs := opts.Attributes
	var attrCols []int
	if attrs == nil {
		for i, h := range head {
			name := strings.TrimSpace(h)
			if coordColumns[strings.ToLower(name)] {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][i]), 64); err != nil {
				continue
			}
			attrs = append(attrs, name)
			attrCols = append(attrCols, i)
		}
	} else {
		for _, a := range attrs {
			i := col(strings.ToLower(a))
			if i < 0 {
				return nil, newMalformed(-1, "column %q not in header", a)
			}
			attrCols = append(attrCols, i)
		}
	}

	num := func(row []string, sample, i int) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return 0, newMalformed(sample, "field %q: %v", head[i], err)
		}
		return v, nil
	}

	proj := &utmProjection{scale: opts.UnitScale}
	samples := make([]Sample, len(rows))
	for s, row := range rows {
		var c vec3d.T
		if geographic {
			lon, err := num(row, s, lonI)
			if err != nil {
				return nil, err
			}
			lat, err := num(row, s, latI)
			if err != nil {
				return nil, err
			}
			if c[0], c[1], err = proj.project(s, lat, lon); err != nil {
				return nil, err
			}
		} else {
			if c[0], err = num(row, s, xi); err != nil {
				return nil, err
			}
			if c[1], err = num(row, s, yi); err != nil {
				return nil, err
			}
		}
		if zi >= 0 {
			if c[2], err = num(row, s, zi); err != nil {
				return nil, err
			}
		}
		values := make([]float64, len(attrCols))
		for k, i := range attrCols {
			if values[k], err = num(row, s, i); err != nil {
				return nil, err
			}
		}
		samples[s] = Sample{Coord: c, Values: values}
	}

	frame := opts.Frame
	if frame == (Frame{}) && geographic {
		frame = proj.frame()
	}
	return NewDataset(frame, attrs, samples)
}

// utmProjection projects every sample into the UTM zone of the first one.
type utmProjection struct {
	scale    float64
	zone     int
	letter   string
	northern bool
	started  bool
}

func (p *utmProjection) project(sample int, lat, lon float64) (x, y float64, err error) {
	if p.scale == 0 {
		p.scale = 1000
	}
	if !p.started {
		p.northern = lat >= 0
	}
	easting, northing, zone, letter, err := UTM.FromLatLon(lat, lon, p.northern)
	if err != nil {
		return 0, 0, newMalformed(sample, "projecting %g, %g: %v", lat, lon, err)
	}
	if !p.started {
		p.zone, p.letter, p.started = zone, letter, true
	} else if zone != p.zone || (lat >= 0) != p.northern {
		return 0, 0, newMalformed(sample, "UTM zone %d%s differs from zone %d%s of the first sample", zone, letter, p.zone, p.letter)
	}
	return easting / p.scale, northing / p.scale, nil
}

func (p *utmProjection) frame() Frame {
	hemi := "N"
	if !p.northern {
		hemi = "S"
	}
	unit := "km"
	if p.scale != 1000 {
		unit = fmt.Sprintf("%g m", p.scale)
	}
	return Frame{Name: fmt.Sprintf("UTM %d%s", p.zone, hemi), Unit: unit}
}

// ReadGeoJSON reads point features and the vertices of line and polygon
// features. Each position carries its value as the third coordinate, which
// becomes the attribute named attribute; the samples themselves are 2D. The
// closing vertex of a polygon ring is read once.
func ReadGeoJSON(data []byte, attribute string, frame Frame) (*Dataset, error) {
	fcs, err := general.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding feature collection")
	}

	var samples []Sample
	add := func(pos geom.Point) error {
		coords := pos.Data()
		if len(coords) < 3 {
			return newMalformed(len(samples), "point has no value coordinate")
		}
		samples = append(samples, Sample{Coord: vec3d.T{pos.X(), pos.Y(), 0}, Values: []float64{coords[2]}})
		return nil
	}
	addAll := func(pts []geom.Point) error {
		for _, pos := range pts {
			if err := add(pos); err != nil {
				return err
			}
		}
		return nil
	}
	for _, feas := range fcs.Features {
		switch g := feas.Geometry.(type) {
		case *general.Point:
			err = add(g)
		case *general.MultiPoint:
			err = addAll(g.Points())
		case *general.LineString:
			err = addAll(g.Subpoints())
		case *general.MultiLine:
			for _, li := range g.Lines() {
				if err = addAll(li.Subpoints()); err != nil {
					break
				}
			}
		case *general.Polygon:
			for _, ring := range g.Sublines() {
				if err = addAll(openRing(ring.Subpoints())); err != nil {
					break
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return NewDataset(frame, []string{attribute}, samples)
}

// openRing drops the closing vertex of a ring that repeats its first one.
func openRing(pts []geom.Point) []geom.Point {
	if n := len(pts); n > 1 && pts[0].X() == pts[n-1].X() && pts[0].Y() == pts[n-1].Y() {
		return pts[:n-1]
	}
	return pts
}

// WritePredictions writes a tab-delimited table with the columns
// location_id, x, y, predicted_value and variance. Missing values are
// written as NaN.
func WritePredictions(w io.Writer, preds []Prediction) error {
	bw := bufio.NewWriter(w)
	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = false

	if err := tsv.Write([]string{"location_id", "x", "y", "predicted_value", "variance"}); err != nil {
		return errors.Wrap(err, "writing predictions")
	}
	for _, p := range preds {
		row := []string{
			strconv.Itoa(p.ID),
			strconv.FormatFloat(p.Point[0], 'f', -1, 64),
			strconv.FormatFloat(p.Point[1], 'f', -1, 64),
			strconv.FormatFloat(p.Value, 'g', -1, 64),
			strconv.FormatFloat(p.Variance, 'g', -1, 64),
		}
		if err := tsv.Write(row); err != nil {
			return errors.Wrap(err, "writing predictions")
		}
	}
	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return errors.Wrap(err, "writing predictions")
	}
	return errors.Wrap(bw.Flush(), "writing predictions")
}
