// Package domain models gridded meteorological observations joined to French
// commune polygons and reduced to department-level time series.
//
// # Data Sources
//
// Observations come from an ERA5-derived daily grid: one row per
// (latitude, longitude, date) carrying seven variables (precipitation, r_min,
// ssrd_mean, Tmax, Tavg, Tmin, ws10_mean). Commune polygons come from the
// OpenStreetMap communes shapefile (field "insee") joined with the INSEE COG
// commune table (COM → DEP) to obtain the department code.
//
// # Coordinates
//
// Everything runs in the native lon/lat coordinate system of the inputs. Grid
// points are placed at X=longitude, Y=latitude. Distances are plain Euclidean
// in degrees and areas are planar in square degrees; no projection is applied.
// Area is only ever used as a relative weight, so the unit does not matter.
//
// # Grid Point Identifiers
//
// Identifiers are assigned once from the distinct coordinates present on a
// reference date (2020-01-01 by default), in ascending (latitude, longitude)
// order, and the same (lat, lon) → id mapping is reused for every other date.
// See [NewObservationGrid].
//
// # Nearest Assignment and Dissolve
//
// Each commune is assigned the grid point nearest to its polygon centroid.
// Equidistant points resolve to the lowest identifier. Communes sharing a grid
// point are dissolved into one region per (point, department) pair, so a region
// never carries weight into a department other than its own. Region area is
// measured on the unioned geometry. See [AssignNearest] and [Dissolve].
//
// # Time Windows
//
// Agricultural year Y runs from September 1 of Y-1 through August 31 of Y,
// inclusive. The climatological baseline averages each calendar month across
// every year present and dates the result in year R for January–August and
// R-1 for September–December, so both series line up on one calendar axis.
//
//	Sep Oct Nov Dec | Jan Feb Mar Apr May Jun Jul Aug
//	 R-1            |  R
//
// # Weighting
//
// Department values are area-weighted means over regions:
//
//	v(dpt, date) = Σ v_r · area_r / Σ area_r
//
// A group whose total area is zero is a data error rather than a NaN.
package domain
