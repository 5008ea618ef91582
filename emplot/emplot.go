/*
 * emplot.go, part of gocistem.
 *
 *
 * Copyright 2025 The gocistem developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 *
 */

//Package emplot draws the usual diagnostic plots from the files the external
//programs leave behind: the CTF fit against the amplitude spectrum, and the
//drift trajectory of a movie alignment.
package emplot

import (
	"fmt"
	"image/color"
	"math"

	cistem "github.com/scipion-em/gocistem"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

func basicPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Padding = vg.Millimeters(3)
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

/*CtfFit produces a png plot of a fitted CTF over the amplitude spectrum of
  the image, with the quality-of-fit curve, all against spatial frequency.
  The curves are the ones ReadAvrotCurves returns. The extension is appended
  to plotname. Returns an error or nil*/
func CtfFit(freq, amp, fit, quality []float64, title, plotname string) error {
	if freq == nil || amp == nil || fit == nil || quality == nil {
		panic("Given nil data")
	}
	p := basicPlot(title, "Spacial frequency (1/A)", "Amplitude (or cross-correlation)")
	p.Y.Min = -0.1
	p.Y.Max = 1.1
	names := []string{"Amplitude spectrum", "CTF Fit", "Quality of fit"}
	palette := []color.RGBA{
		{B: 255, A: 255},
		{R: 255, A: 255},
		{G: 180, A: 255},
	}
	for i, curve := range [][]float64{amp, fit, quality} {
		pts := make(plotter.XYs, 0, len(curve))
		for k, v := range curve {
			if k >= len(freq) {
				break
			}
			pts = append(pts, plotter.XY{X: freq[k], Y: v})
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = palette[i]
		p.Add(l)
		p.Legend.Add(names[i], l)
	}
	p.Legend.Top = true
	filename := fmt.Sprintf("%s.png", plotname)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return err
	}
	return nil
}

/*Drift produces a png plot of the trajectory of a movie alignment: the
  per-frame positions, in pixels, joined in frame order, with the first
  frame marked. Axes are kept square so the path is not distorted.
  The extension is appended to plotname. Returns an error or nil*/
func Drift(xs, ys []float64, title, plotname string) error {
	if xs == nil || ys == nil {
		panic("Given nil data")
	}
	if len(xs) != len(ys) {
		return fmt.Errorf("Drift: trajectory needs as many x as y positions: %d vs %d", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return fmt.Errorf("Drift: empty trajectory")
	}
	p := basicPlot(title, "X shift (px)", "Y shift (px)")
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	l, s, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	l.Color = color.RGBA{B: 255, A: 255}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(l, s)
	start, err := plotter.NewScatter(pts[:1])
	if err != nil {
		return err
	}
	start.GlyphStyle.Shape = draw.CircleGlyph{}
	start.GlyphStyle.Radius = vg.Points(4)
	start.GlyphStyle.Color = color.RGBA{R: 255, A: 255}
	p.Add(start)
	p.Legend.Add("first frame", start)
	lo := math.Min(floats.Min(xs), floats.Min(ys))
	hi := math.Max(floats.Max(xs), floats.Max(ys))
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	p.X.Min, p.Y.Min = lo-pad, lo-pad
	p.X.Max, p.Y.Max = hi+pad, hi+pad
	filename := fmt.Sprintf("%s.png", plotname)
	if err := p.Save(4*vg.Inch, 4*vg.Inch, filename); err != nil {
		return err
	}
	return nil
}

//Subtitle builds the one-line summary of a fitted CTF carried under the
//title of the result plots. The phase shift only appears when the record
//has one.
func Subtitle(ctf *cistem.Ctf) string {
	const ang = "Å"
	const deg = "°"
	title := fmt.Sprintf("Def1: %d %s | Def2: %d %s | Angle: %0.1f%s | ",
		int(ctf.DefocusU), ang, int(ctf.DefocusV), ang, ctf.DefocusAngle, deg)
	if ctf.HasPhaseShift {
		title += fmt.Sprintf("Phase shift: %0.2f %s | ", ctf.PhaseShift, deg)
	}
	title += fmt.Sprintf("Fit: %0.1f %s | Score: %0.3f", ctf.Resolution, ang, ctf.FitQuality)
	return title
}
