// Package log provides secure logging built on top of the standard slog package.
//
// Media metadata routinely carries the capture location, device serial
// numbers and the name of the person who recorded it. The SecureHandler masks
// such values before they reach any log sink:
//   - GPS and location keys, including flattened EXIF and QuickTime keys
//   - Device serial numbers and owner, author and artist tags
//   - ISO 6709 and decimal coordinate values, whatever their key
//   - HTTP credentials seen by the serve command
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("metadata tags", "exif.gpslatitude", v) // masked
//	slog.SetDefault(logger)
package log
