// Package logx configures hwbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output line-oriented: "<timestamp> - <LEVEL> - <message> key=value ..."
//   - File output JSON-structured
//   - Levels swappable at runtime (Service.Apply) for config hot reload
package logx
