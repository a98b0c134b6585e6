// Package logger wraps zap for the flight software daemons:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level control that ground commands can change at runtime,
//   - leveled helpers (Infof, ErrorKV, etc.).
//
// Every component receives a context and takes its logger from it, so log
// lines carry the component name and any correlation fields set upstream.
// Logging is best effort: no helper in this package returns an error.
package logger
