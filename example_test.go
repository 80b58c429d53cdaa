package geostat

import (
	"fmt"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

func ExampleVariogramModel() {
	m := VariogramModel{Shape: Spherical, Nugget: 0.5, Sill: 1.5, Range: 10}
	fmt.Printf("%.5f %.5f %.5f\n", m.Semivariance(5), m.Semivariance(20), m.TotalSill())
	fmt.Printf("%.5f %.5f\n", m.Covariance(0), m.Covariance(5))
	// Output:
	// 1.53125 2.00000 2.00000
	// 2.00000 0.46875
}

func ExampleNewIDW() {
	ds, _ := NewDataset(Frame{}, []string{"z"}, []Sample{
		{Coord: vec3d.T{0, 0, 0}, Values: []float64{0}},
		{Coord: vec3d.T{4, 0, 0}, Values: []float64{10}},
	})
	w, _ := NewIDW(ds, IDWOptions{Attribute: "z"})
	preds, _ := w.Predict(NewPointGrid(Frame{}, []vec3d.T{{1, 0, 0}, {2, 0, 0}}))
	for _, p := range preds {
		fmt.Printf("%d %.3f\n", p.ID, p.Value)
	}
	// Output:
	// 0 1.000
	// 1 5.000
}

func ExampleNewPredictor() {
	ds, _ := NewDataset(Frame{}, []string{"z"}, []Sample{
		{Coord: vec3d.T{0, 0, 0}, Values: []float64{1}},
		{Coord: vec3d.T{2, 0, 0}, Values: []float64{3}},
	})
	model := VariogramModel{Shape: Exponential, Nugget: 0.1, Sill: 1, Range: 5}
	k, _ := NewPredictor(model, ds, PredictorOptions{Attribute: "z", Mode: Ordinary})
	w, _ := k.Weights(Location{Point: vec3d.T{1, 0, 0}})
	fmt.Printf("value %.3f weights %.3f %.3f\n", w.Value, w.Weights[0], w.Weights[1])
	// Output:
	// value 2.000 weights 0.500 0.500
}

func ExampleEnsembleWeights() {
	w, _ := EnsembleWeights([]float64{0.6, -0.1, 0.2}, ClampZero)
	fmt.Printf("%.2f\n", w)
	// Output:
	// [0.75 0.00 0.25]
}
