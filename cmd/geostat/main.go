// Geostat is a tool for variogram analysis and kriging of point samples.
package main

import (
	"github.com/js-arias/command"

	"github.com/flywave/go-geostat/cmd/geostat/cv"
	"github.com/flywave/go-geostat/cmd/geostat/fit"
	"github.com/flywave/go-geostat/cmd/geostat/idw"
	"github.com/flywave/go-geostat/cmd/geostat/krige"
	"github.com/flywave/go-geostat/cmd/geostat/simulate"
	"github.com/flywave/go-geostat/cmd/geostat/variogram"
)

var app = &command.Command{
	Usage: "geostat <command> [<argument>...]",
	Short: "a tool for variogram analysis and kriging",
}

func init() {
	app.Add(variogram.Command)
	app.Add(fit.Command)
	app.Add(krige.Command)
	app.Add(cv.Command)
	app.Add(idw.Command)
	app.Add(simulate.Command)

	app.Add(dataFilesGuide)
	app.Add(configGuide)
}

func main() {
	app.Main()
}
