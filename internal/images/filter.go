package images

import (
	"slices"
	"strings"
)

// Sort orders.
const (
	SortRelevance = "relevance"
	SortSize      = "size"
	SortWidth     = "width"
	SortHeight    = "height"
)

// Filters narrows a result set. Zero values disable a filter.
type Filters struct {
	MinWidth    int
	MinHeight   int
	Orientation string
}

// Filter returns the images matching f. Images with unknown dimensions pass
// the orientation check but fail a minimum-size check.
func Filter(imgs []Image, f Filters) []Image {
	out := make([]Image, 0, len(imgs))
	for _, img := range imgs {
		if f.MinWidth > 0 && img.Width < f.MinWidth {
			continue
		}
		if f.MinHeight > 0 && img.Height < f.MinHeight {
			continue
		}
		if f.Orientation != "" && !matchesOrientation(img, f.Orientation) {
			continue
		}
		out = append(out, img)
	}
	return out
}

// OrientationOf classifies an image by aspect ratio.
func OrientationOf(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio > 1.2:
		return Landscape
	case ratio < 0.8:
		return Portrait
	default:
		return Square
	}
}

func matchesOrientation(img Image, want string) bool {
	got := OrientationOf(img.Width, img.Height)
	if got == "" {
		return true
	}
	switch strings.ToLower(want) {
	case Landscape, Portrait, Square:
		return got == strings.ToLower(want)
	default:
		return true
	}
}

// Sort returns a copy of imgs ordered by the given key, largest first.
// Relevance and unknown keys keep the provider order.
func Sort(imgs []Image, by string) []Image {
	out := slices.Clone(imgs)
	var key func(Image) int
	switch by {
	case SortSize:
		key = func(i Image) int { return i.Width * i.Height }
	case SortWidth:
		key = func(i Image) int { return i.Width }
	case SortHeight:
		key = func(i Image) int { return i.Height }
	default:
		return out
	}
	slices.SortStableFunc(out, func(a, b Image) int { return key(b) - key(a) })
	return out
}

// apply runs the query's filters and sort order over a provider's raw results.
func apply(imgs []Image, q Query) []Image {
	if q.Filters != (Filters{}) {
		imgs = Filter(imgs, q.Filters)
	}
	if q.SortBy != "" {
		imgs = Sort(imgs, q.SortBy)
	}
	return imgs
}
