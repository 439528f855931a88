// Package transcoder drives ffmpeg for every media-producing step.
//
// Operations:
//   - Thumbnail: single still frame at an offset
//   - Remux: stream-copy the primary video and audio tracks only
//   - Package: DASH manifest plus init/chunk segments for a ladder
//   - DebugMP4: single-file diagnostic transcode
//
// Any non-zero exit is returned as *ToolError carrying the trimmed stderr.
package transcoder
