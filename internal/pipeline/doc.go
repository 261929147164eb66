// Package pipeline schedules per-image optimization across a bounded pool.
//
// Each selected image moves through probing, planning, reconciling,
// transcoding, restatting, and summarizing. Images are independent: a probe
// failure excludes only that image and a transcode failure keeps whatever
// outputs ffmpeg managed to write. Results are collected under a mutex and
// returned sorted by source path so downstream manifest assembly is
// deterministic regardless of completion order.
package pipeline
