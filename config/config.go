/*
 * config.go, part of gocistem.
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

//Package config loads and saves the YAML configuration of a site: where the
//cisTEM binaries live and the stock search parameters of the programs. A
//missing file is not an error, it just means the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/scipion-em/gocistem/prog"
	"github.com/scipion-em/gocistem/refine2d"
	"gopkg.in/yaml.v3"
)

//Config is the whole configuration. Zero program paths mean each handle
//resolves its own binary, from $CISTEM_HOME or the shell path.
type Config struct {
	Programs struct {
		Ctffind       string `yaml:"ctffind"`
		Unblur        string `yaml:"unblur"`
		FindParticles string `yaml:"findParticles"`
		Resample      string `yaml:"resample"`
	} `yaml:"programs"`

	//Microscope constants and CTF search window, the per-lab part of a
	//ctffind run. The per-image inputs (micrograph, pixel size) stay out.
	Ctf struct {
		Voltage             float64 `yaml:"voltage"`             //kV
		SphericalAberration float64 `yaml:"sphericalAberration"` //mm
		AmpContrast         float64 `yaml:"ampContrast"`
		WindowSize          int     `yaml:"windowSize"` //pixels
		LowRes              float64 `yaml:"lowRes"`     //A
		HighRes             float64 `yaml:"highRes"`    //A
		MinDefocus          float64 `yaml:"minDefocus"` //A
		MaxDefocus          float64 `yaml:"maxDefocus"` //A
		StepDefocus         float64 `yaml:"stepDefocus"`
	} `yaml:"ctf"`

	Refine struct {
		NumIterations int     `yaml:"numIterations"`
		StartRes      float64 `yaml:"startRes"` //A, resolution ramp start
		EndRes        float64 `yaml:"endRes"`   //A, resolution ramp end
		ManualPercent float64 `yaml:"manualPercent"`
		Auto          bool    `yaml:"auto"` //automatic percent-used schedule
	} `yaml:"refine"`
}

//DefaultConfig returns the stock configuration. The CTF section mirrors the
//defaults the ctffind options type sets for itself, so a config file only
//has to name what differs at the site.
func DefaultConfig() *Config {
	C := &Config{}
	C.Ctf.Voltage = 300
	C.Ctf.SphericalAberration = 2.7
	C.Ctf.AmpContrast = 0.07
	C.Ctf.WindowSize = 512
	C.Ctf.LowRes = 30
	C.Ctf.HighRes = 5
	C.Ctf.MinDefocus = 5000
	C.Ctf.MaxDefocus = 50000
	C.Ctf.StepDefocus = 100
	C.Refine.NumIterations = 20
	C.Refine.StartRes = 40
	C.Refine.EndRes = 8
	//the manual percent floors the automatic schedule, so the stock value
	//is no floor at all; sites running with auto off set their own
	C.Refine.ManualPercent = 0
	C.Refine.Auto = true
	return C
}

//Load reads a configuration file on top of the defaults, so absent keys
//keep their stock values. A file that does not exist at all returns the
//plain defaults, not an error.
func Load(path string) (*Config, error) {
	C := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return C, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Error{err.Error(), path, []string{"os.ReadFile", "Load"}, true}
	}
	if err := yaml.Unmarshal(data, C); err != nil {
		return nil, Error{err.Error(), path, []string{"yaml.Unmarshal", "Load"}, true}
	}
	return C, nil
}

//Save writes the configuration, creating the enclosing directory if needed.
func (C *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Error{err.Error(), path, []string{"os.MkdirAll", "Save"}, true}
		}
	}
	data, err := yaml.Marshal(C)
	if err != nil {
		return Error{err.Error(), path, []string{"yaml.Marshal", "Save"}, true}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Error{err.Error(), path, []string{"os.WriteFile", "Save"}, true}
	}
	return nil
}

//Command returns the configured path for one of the cisTEM programs, by its
//conventional name, or the empty string when the site does not pin one.
func (C *Config) Command(program string) string {
	switch program {
	case prog.Ctffind:
		return C.Programs.Ctffind
	case prog.Unblur:
		return C.Programs.Unblur
	case prog.FindParticles:
		return C.Programs.FindParticles
	case prog.Resample:
		return C.Programs.Resample
	}
	return ""
}

//ApplyProgram points a handle at the configured binary for the given
//program. With no path configured the handle keeps whatever it resolved
//on its own.
func (C *Config) ApplyProgram(H prog.Handle, program string) {
	if cmd := C.Command(program); cmd != "" {
		H.SetCommand(cmd)
	}
}

//ApplyCtf copies the configured microscope constants and search window onto
//a set of ctffind options, on top of whatever they already hold.
func (C *Config) ApplyCtf(Q *prog.CtfCalc) {
	Q.Voltage = C.Ctf.Voltage
	Q.SphericalAberration = C.Ctf.SphericalAberration
	Q.AmpContrast = C.Ctf.AmpContrast
	Q.WindowSize = C.Ctf.WindowSize
	Q.LowRes = C.Ctf.LowRes
	Q.HighRes = C.Ctf.HighRes
	Q.MinDefocus = C.Ctf.MinDefocus
	Q.MaxDefocus = C.Ctf.MaxDefocus
	Q.StepDefocus = C.Ctf.StepDefocus
}

//ApplyRefine copies the configured classification schedule onto a run.
func (C *Config) ApplyRefine(R *refine2d.Run) {
	R.Iters = C.Refine.NumIterations
	R.StartRes = C.Refine.StartRes
	R.EndRes = C.Refine.EndRes
	R.Manual = C.Refine.ManualPercent
	R.Auto = C.Refine.Auto
}

//Errors

//Error is the error type for configuration files.
type Error struct {
	message  string
	filename string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("cistem config file %s error: %s", err.filename, err.message)
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//FileName returns the name of the file that caused the error.
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file that caused the error.
func (err Error) Format() string { return "yaml" }

//Critical returns true if the error is critical, false otherwise.
func (err Error) Critical() bool { return err.critical }
