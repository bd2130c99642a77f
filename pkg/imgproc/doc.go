// Package imgproc provides the low-level image operations the detector and
// fitter are built on: connected-component labeling with region properties,
// disk rasterization, median filtering, Otsu thresholding and normalized
// cross-correlation.
//
// The operations follow the contracts of their scikit-image counterparts:
//
//   - Label uses 8-connectivity and numbers components from 1 in raster order.
//   - Disk selects pixels strictly inside the circle, clipped to the image.
//   - MedianFilter extends edges with the nearest pixel.
//   - OtsuThreshold returns a histogram bin center.
//   - MatchTemplate returns a same-shape score map over a zero-padded image.
//
// All functions treat their inputs as read-only and return new arrays.
package imgproc
