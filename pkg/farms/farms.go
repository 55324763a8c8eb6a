// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package farms

import (
	"time"

	"storj.io/paddock/pkg/access"
)

// Farm is the stored farm document. BlockCount, DatasetCount and TotalArea
// are derived rollups maintained by RefreshRollup, never independently
// authoritative. ID and Owner never change after creation.
type Farm struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Owner    string `json:"owner"`

	Collaborators []access.Collaborator  `json:"collaborators,omitempty"`
	Members       []string               `json:"members,omitempty"`
	Permissions   map[string]access.Role `json:"permissions,omitempty"`

	BlockCount   int     `json:"blockCount"`
	DatasetCount int     `json:"datasetCount"`
	TotalArea    float64 `json:"totalArea"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Info holds the caller supplied farm fields
type Info struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Grants returns every permission representation of the farm for resolving
func (farm Farm) Grants() access.Grants {
	return access.Grants{
		Owner:         farm.Owner,
		Collaborators: farm.Collaborators,
		Members:       farm.Members,
		Permissions:   farm.Permissions,
	}
}
