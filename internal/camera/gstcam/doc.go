// Package gstcam reads V4L2 cameras through GStreamer. It is only built with
// the gstreamer build tag, which requires the GStreamer development headers.
package gstcam
