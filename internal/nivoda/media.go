package nivoda

import (
	"encoding/json"
	"regexp"
	"strings"
)

// MediaItem is one normalized media entry for a diamond, videos first in the
// final ordering.
type MediaItem struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

var videoExtensionRe = regexp.MustCompile(`(?i)\.(mp4|webm|mov|m3u8)(\?.*)?$`)

// Keys recognized inside nested media objects; remaining values are scanned
// recursively as a catch-all.
var mediaObjectKeys = []string{
	"url",
	"video_url", "videoUrl",
	"image_url", "imageUrl",
	"hd_image_url", "hdImageUrl",
	"preview_image_url", "previewImageUrl",
	"thumbnail_url", "thumbnailUrl", "thumbnail",
}

func isHTTPURL(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(strings.ToLower(trimmed), "http://") ||
		strings.HasPrefix(strings.ToLower(trimmed), "https://")
}

func isVideoURL(value string) bool {
	return videoExtensionRe.MatchString(strings.TrimSpace(value))
}

// normalizeJSONCandidate re-parses string values that carry JSON-encoded
// arrays or objects, a shape some Nivoda media fields arrive in.
func normalizeJSONCandidate(value any) any {
	raw, ok := value.(string)
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return value
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return value
	}
	return parsed
}

// mediaFromValue flattens one media field value, which may be a bare URL
// string, a JSON-encoded string, an array, or a nested object under varying
// key names.
func mediaFromValue(value any, fallbackType string) []MediaItem {
	if value == nil {
		return nil
	}

	switch v := normalizeJSONCandidate(value).(type) {
	case string:
		url := strings.TrimSpace(v)
		if !isHTTPURL(url) {
			return nil
		}
		mediaType := fallbackType
		if isVideoURL(url) {
			mediaType = "video"
		}
		return []MediaItem{{Type: mediaType, URL: url}}
	case []any:
		var items []MediaItem
		for _, entry := range v {
			items = append(items, mediaFromValue(entry, fallbackType)...)
		}
		return items
	case map[string]any:
		var items []MediaItem
		for _, key := range mediaObjectKeys {
			if entry, exists := v[key]; exists {
				items = append(items, mediaFromValue(entry, fallbackType)...)
			}
		}
		for key, entry := range v {
			if isMediaObjectKey(key) {
				continue
			}
			items = append(items, mediaFromValue(entry, fallbackType)...)
		}
		return items
	default:
		return nil
	}
}

func isMediaObjectKey(key string) bool {
	for _, candidate := range mediaObjectKeys {
		if key == candidate {
			return true
		}
	}
	return false
}

type mediaBucketSource struct {
	key          string
	bucket       int
	fallbackType string
}

const (
	bucketVideo = iota
	bucketHD
	bucketImage
	bucketPreview
	bucketCount
)

// Bucket assignments preserve the display priority: videos, then HD images,
// then plain images, then previews/thumbnails.
var mediaBucketSources = []mediaBucketSource{
	{"video", bucketVideo, "video"},
	{"video_url", bucketVideo, "video"},
	{"videoUrl", bucketVideo, "video"},
	{"hd_image_url", bucketHD, "image"},
	{"hdImageUrl", bucketHD, "image"},
	{"image", bucketImage, "image"},
	{"image_url", bucketImage, "image"},
	{"imageUrl", bucketImage, "image"},
	{"preview_image_url", bucketPreview, "image"},
	{"previewImageUrl", bucketPreview, "image"},
	{"media", bucketImage, "image"},
	{"images", bucketImage, "image"},
	{"hd_images", bucketHD, "image"},
	{"hdImages", bucketHD, "image"},
	{"preview_images", bucketPreview, "image"},
	{"previewImages", bucketPreview, "image"},
	{"thumbnails", bucketPreview, "image"},
}

// buildMediaList scans every known media field of a raw diamond payload and
// flattens the results into a deduplicated ordered list, videos first,
// preserving first-seen order within each bucket.
func buildMediaList(diamond map[string]any) []MediaItem {
	buckets := make([][]MediaItem, bucketCount)
	for _, source := range mediaBucketSources {
		value, exists := diamond[source.key]
		if !exists {
			continue
		}
		entries := mediaFromValue(value, source.fallbackType)
		if len(entries) == 0 {
			continue
		}
		buckets[source.bucket] = append(buckets[source.bucket], entries...)
	}

	var ordered []MediaItem
	for bucket, entries := range buckets {
		for _, entry := range entries {
			mediaType := entry.Type
			if bucket != bucketImage && bucket != bucketVideo {
				mediaType = "image"
			}
			if bucket == bucketVideo {
				mediaType = "video"
			}
			ordered = append(ordered, MediaItem{Type: mediaType, URL: entry.URL})
		}
	}

	return dedupeMedia(ordered)
}

func dedupeMedia(items []MediaItem) []MediaItem {
	seen := make(map[string]bool, len(items))
	var output []MediaItem
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		key := item.Type + ":" + item.URL
		if seen[key] {
			continue
		}
		seen[key] = true
		output = append(output, item)
	}
	return output
}
