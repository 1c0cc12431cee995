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
)

const (
	MaxLat Degrees = 90.0
	MaxLon Degrees = 180.0
	MinLat Degrees = -90.0
	MinLon Degrees = -180.0
)

// BoundingBox is an area bounded by two parallels and two meridians.
type BoundingBox struct {
	Top    Degrees `json:"top"`
	Left   Degrees `json:"left"`
	Bottom Degrees `json:"bottom"`
	Right  Degrees `json:"right"`
}

// BoundingBoxFromNano builds a bounding box from edges given in
// nanodegrees, the unit of the PBF header.
func BoundingBoxFromNano(left, right, top, bottom int64) *BoundingBox {
	return &BoundingBox{
		Top:    NanoToDegrees(top),
		Left:   NanoToDegrees(left),
		Bottom: NanoToDegrees(bottom),
		Right:  NanoToDegrees(right),
	}
}

// InitialBoundingBox creates an inverted BoundingBox that is meant to be
// expanded; it contains nothing until the first expansion.
func InitialBoundingBox() *BoundingBox {
	return &BoundingBox{
		Top:    MinLat,
		Left:   MaxLon,
		Bottom: MaxLat,
		Right:  MinLon,
	}
}

// EqualWithin checks if two bounding boxes are within a specific epsilon.
func (b *BoundingBox) EqualWithin(o *BoundingBox, eps Epsilon) bool {
	return b.Left.EqualWithin(o.Left, eps) &&
		b.Right.EqualWithin(o.Right, eps) &&
		b.Top.EqualWithin(o.Top, eps) &&
		b.Bottom.EqualWithin(o.Bottom, eps)
}

// Contains checks if the bounding box contains the point.
func (b *BoundingBox) Contains(lat Degrees, lng Degrees) bool {
	return b.Bottom <= lat && lat <= b.Top && b.Left <= lng && lng <= b.Right
}

// ExpandWithLatLng grows the bounding box to include the point.
func (b *BoundingBox) ExpandWithLatLng(lat, lng Degrees) {
	b.Top = max(b.Top, lat)
	b.Bottom = min(b.Bottom, lat)
	b.Left = min(b.Left, lng)
	b.Right = max(b.Right, lng)
}

// ExpandWithBoundingBox grows the bounding box to include o. Empty boxes
// are ignored.
func (b *BoundingBox) ExpandWithBoundingBox(o *BoundingBox) {
	if o.IsEmpty() {
		return
	}

	b.ExpandWithLatLng(o.Top, o.Left)
	b.ExpandWithLatLng(o.Bottom, o.Right)
}

// IsEmpty reports whether the bounding box contains no point at all, as an
// unexpanded InitialBoundingBox.
func (b *BoundingBox) IsEmpty() bool {
	return b.Top < b.Bottom || b.Right < b.Left
}

func (b *BoundingBox) String() string {
	return fmt.Sprintf("[(%s, %s) (%s, %s)]",
		ftoa(float64(b.Top)), ftoa(float64(b.Left)),
		ftoa(float64(b.Bottom)), ftoa(float64(b.Right)))
}
