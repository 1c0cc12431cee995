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
	"slices"
	"time"
)

// Well known feature names of the PBF header.
const (
	FeatureOsmSchema       = "OsmSchema-V0.6"
	FeatureDenseNodes      = "DenseNodes"
	FeatureHistorical      = "HistoricalInformation"
	FeatureSortedByType    = "Sort.Type_then_ID"
	FeatureLocationsOnWays = "LocationsOnWays"
)

// Header is the metadata carried by the first block of a PBF stream. It is
// exposed to callers, never handed to a Sink.
type Header struct {
	// BoundingBox is nil when the writer did not declare one.
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`

	// RequiredFeatures must all be understood by a reader.
	RequiredFeatures []string `json:"required_features,omitempty"`

	// OptionalFeatures describe properties of the data that a reader may
	// exploit, such as sort order.
	OptionalFeatures []string `json:"optional_features,omitempty"`

	WritingProgram string `json:"writing_program,omitempty"`
	Source         string `json:"source,omitempty"`

	OsmosisReplicationTimestamp      time.Time `json:"osmosis_replication_timestamp,omitempty"`
	OsmosisReplicationSequenceNumber int64     `json:"osmosis_replication_sequence_number,omitempty"`
	OsmosisReplicationBaseURL        string    `json:"osmosis_replication_base_url,omitempty"`
}

// UnsupportedFeatures returns the required features missing from supported,
// in header order.
func (h *Header) UnsupportedFeatures(supported []string) []string {
	var missing []string

	for _, f := range h.RequiredFeatures {
		if !slices.Contains(supported, f) {
			missing = append(missing, f)
		}
	}

	return missing
}

// HasOptionalFeature reports whether the writer declared the optional
// feature.
func (h *Header) HasOptionalFeature(feature string) bool {
	return slices.Contains(h.OptionalFeatures, feature)
}

// HasReplication reports whether the header carries osmosis replication
// state.
func (h *Header) HasReplication() bool {
	return !h.OsmosisReplicationTimestamp.IsZero() ||
		h.OsmosisReplicationSequenceNumber != 0 ||
		h.OsmosisReplicationBaseURL != ""
}
