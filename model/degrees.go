// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s1"
)

// NanoDegreesPerDegree is the number of nanodegrees, the unit of PBF
// coordinates, in one degree.
const NanoDegreesPerDegree = 1e9

// Degrees is a latitude or longitude in decimal degrees.
type Degrees float64

// Epsilon is a precision to compare Degrees with.
type Epsilon float64

const (
	E5 Epsilon = 1e-5
	E6 Epsilon = 1e-6
	E7 Epsilon = 1e-7
	E8 Epsilon = 1e-8
	E9 Epsilon = 1e-9
)

// ToDegrees converts a coordinate into Degrees, given the offset and
// granularity of the coordinate, both in nanodegrees.
func ToDegrees(offset int64, granularity int32, coordinate int64) Degrees {
	return NanoToDegrees(offset + int64(granularity)*coordinate)
}

// NanoToDegrees converts nanodegrees into Degrees.
func NanoToDegrees(nano int64) Degrees {
	return Degrees(float64(nano) / NanoDegreesPerDegree)
}

// Angle returns d as an s1.Angle.
func (d Degrees) Angle() s1.Angle {
	return s1.Angle(d) * s1.Degree
}

// E7 returns d in ten millionths of a degree, the precision of OSM
// coordinates.
func (d Degrees) E7() int32 {
	return d.Angle().E7()
}

// EqualWithin reports whether d and o are equal once rounded to eps.
func (d Degrees) EqualWithin(o Degrees, eps Epsilon) bool {
	return math.Round(float64(d)/float64(eps)) == math.Round(float64(o)/float64(eps))
}

// String formats d in degrees, minutes and seconds, at the precision of E7.
func (d Degrees) String() string {
	const unit = 10_000_000

	e7 := int64(d.E7())

	sign := ""
	if e7 < 0 {
		sign = "-"
		e7 = -e7
	}

	rem := e7 % unit * 60
	seconds := float64(rem%unit*60) / unit

	return fmt.Sprintf("%s%d\u00B0 %d' %s\"", sign, e7/unit, rem/unit, ftoa(seconds))
}

func (d Degrees) MarshalJSON() ([]byte, error) {
	return []byte(ftoa(float64(d))), nil
}

// ftoa formats f with at most six decimals and no trailing zeros.
func ftoa(f float64) string {
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = strings.TrimRight(s, "0")

	return strings.TrimSuffix(s, ".")
}
