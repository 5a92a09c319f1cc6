// Package chart renders normalized distributions as bar-chart figures.
//
// The numeric extractors in stdimg know nothing about presentation; each chart kind is
// described by an AxisProfile carrying its labels and axis ranges.
package chart

import (
	"image/color"

	"github.com/Fepozopo/imghist/pkg/stdimg"
)

// ProfileKind tags the variant held by an AxisProfile.
type ProfileKind int

const (
	ColorKind ProfileKind = iota
	GrayKind
	GradientKind
)

func (k ProfileKind) String() string {
	switch k {
	case ColorKind:
		return "color"
	case GrayKind:
		return "gray"
	case GradientKind:
		return "gradient"
	default:
		return "unknown"
	}
}

// AxisProfile describes how a distribution is laid out on the chart axes.
type AxisProfile struct {
	Kind   ProfileKind
	XLabel string
	YLabel string

	// XMin and XMax bound the x axis for numeric profiles. Category profiles
	// ignore them and place one bar per category.
	XMin, XMax float64
	// YMax fixes the top of the y axis; 0 lets Render derive it from the data.
	YMax float64

	// Categories switches to a category axis with one labelled bar each.
	Categories []string
	BarColors  []color.Color
	BarWidth   float64
	// ValueLabels prints each bar's value above it.
	ValueLabels bool
}

var (
	blueBar  = color.RGBA{0x1f, 0x3f, 0xd0, 0xff}
	greenBar = color.RGBA{0x1a, 0x9a, 0x30, 0xff}
	redBar   = color.RGBA{0xd0, 0x20, 0x20, 0xff}
	plainBar = color.RGBA{0x1f, 0x77, 0xb4, 0xff}
)

// ColorProfile lays out the three channel proportions as labelled bars. The y axis
// tops out at 1.2x the largest proportion so value labels fit above the bars.
func ColorProfile(p stdimg.ColorProportions) AxisProfile {
	names := make([]string, 0, len(stdimg.Channels))
	for _, c := range stdimg.Channels {
		names = append(names, c.String())
	}
	yMax := p.Max() * 1.2
	return AxisProfile{
		Kind:        ColorKind,
		XLabel:      "Color Component",
		YLabel:      "Proportion of Color Components",
		YMax:        yMax,
		Categories:  names,
		BarColors:   []color.Color{blueBar, greenBar, redBar},
		BarWidth:    0.9,
		ValueLabels: true,
	}
}

// GrayProfile fixes the x axis to the 8-bit intensity range [0, 255].
func GrayProfile() AxisProfile {
	return AxisProfile{
		Kind:      GrayKind,
		XLabel:    "Grayscale Value",
		YLabel:    "Proportion of Grayscale Values",
		XMin:      0,
		XMax:      255,
		BarColors: []color.Color{plainBar},
		BarWidth:  1,
	}
}

// GradientProfile bounds the x axis by the display cutoff of a gradient histogram.
func GradientProfile(cutoff int) AxisProfile {
	return AxisProfile{
		Kind:      GradientKind,
		XLabel:    "Gradient Intensity",
		YLabel:    "Proportion of Gradient Intensities",
		XMin:      0,
		XMax:      float64(cutoff),
		BarColors: []color.Color{plainBar},
		BarWidth:  1,
	}
}
