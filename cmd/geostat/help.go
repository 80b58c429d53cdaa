package main

import "github.com/js-arias/command"

var dataFilesGuide = &command.Command{
	Usage: "data-files",
	Short: "about sample data files",
	Long: `
Geostat reads point samples either from a delimited table or from a GeoJSON
feature collection. The format is chosen by the file extension: files ending
in ".geojson" or ".json" are read as GeoJSON, anything else as a table.

A table has a header row and is comma or tab delimited (tab is used when the
header holds one). The coordinates are read from the following columns:

	-x, -y   projected coordinates, in the units of the analysis
	-z       optional elevation
	-lon     longitude in degrees, used when there is no x column
	-lat     latitude in degrees, used when there is no y column

Longitude and latitude are projected to the UTM zone of the first sample,
with coordinates in kilometres. Every sample must fall in the same zone.

Every other numeric column is an attribute. Commands work on the attribute
named in the configuration file, or on the first one. Lines starting with
'#' are ignored.

Here is an example file:

	# ozone samples
	lon	lat	o3
	-81.37	28.53	41.2
	-81.30	28.60	39.8
	-81.45	28.48	44.0

In GeoJSON files every Point or MultiPoint carries its value as the third
coordinate.

Prediction points given with --points are read from a table with x, y and an
optional z column.
	`,
}

var configGuide = &command.Command{
	Usage: "config-files",
	Short: "about configuration files",
	Long: `
Every command accepts a YAML configuration file with the flag --config. Keys
not set in the file keep their defaults. Here is a file with the defaults:

	attribute: ""
	variogram:
	  width: 0          # zero is cutoff/15
	  cutoff: 0         # zero is the dataset diameter
	  directions: []    # azimuths in degrees, empty is omnidirectional
	  tolerance: 22.5
	  estimator: matheron   # or cressie
	fit:
	  model: spherical  # nugget, exponential, spherical, gaussian, linear
	  weighting: pairs  # pairs, pairs-h2 or none
	  maxIterations: 200
	  fixNugget: false
	  fixSill: false
	  fixRange: false
	kriging:
	  mode: ordinary    # simple, ordinary or universal
	  mean: null        # required by simple kriging
	  trendDegree: 1
	  nmax: 20
	  nmin: 1
	  maxdist: 0        # zero is unlimited
	  cellSize: 0
	  blockSize: 0
	  blockPoints: 4
	crossValidation:
	  folds: 5
	  seed: 1
	idw:
	  power: 2
	  nmax: 10
	  tune: false
	  testFraction: 0.2
	  seed: 1
	simulation:
	  method: sgs       # sgs or sis
	  nsim: 10
	  threshold: null
	  seed: 1
	log:
	  level: warn
	  console: true
	`,
}
