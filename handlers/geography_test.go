// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"

	"github.com/danielhkuo/municipal-results/models"
	"github.com/danielhkuo/municipal-results/testutil"
)

func TestGeographyHandlers(t *testing.T) {
	e := newEnv(t, 2)
	h := NewGeographyHandler(e.svc)

	w := call(h.CreateCenter, "POST", "/centres-de-vote", models.CreateCenterRequest{
		NeighborhoodID: e.NeighborhoodID, Name: "CEG Le Plateau", DeclaredStations: 3,
	}, &e.Admin)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = call(h.CreateCenter, "POST", "/centres-de-vote", models.CreateCenterRequest{
		NeighborhoodID: "missing", Name: "CEG Le Plateau",
	}, &e.SuperAdmin)
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = call(h.CreateCenter, "POST", "/centres-de-vote", models.CreateCenterRequest{
		NeighborhoodID: e.NeighborhoodID, Name: "CEG Le Plateau", DeclaredStations: 3,
	}, &e.SuperAdmin)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var center models.PollingCenter
	testutil.AssertJSON(t, w, &center)

	w = call(h.CreateStation, "POST", "/postes", models.CreateStationRequest{CenterID: center.ID, Number: 1}, &e.SuperAdmin)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var station models.PollingStation
	testutil.AssertJSON(t, w, &station)
	if station.Label != "Bureau 1" {
		t.Errorf("Expected default label, got %q", station.Label)
	}

	w = call(h.CreateStation, "POST", "/postes", models.CreateStationRequest{CenterID: center.ID, Number: 1}, &e.SuperAdmin)
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, "ALREADY_EXISTS")

	w = call(h.GetCenter, "GET", "/centres-de-vote/"+center.ID, nil, nil, "id", center.ID)
	testutil.AssertStatus(t, w, http.StatusOK)
	var detail models.CenterWithLineage
	testutil.AssertJSON(t, w, &detail)
	if detail.Lineage.WardID != e.WardID || detail.Lineage.DepartmentID != e.DepartmentID {
		t.Errorf("Unexpected lineage %+v", detail.Lineage)
	}
	if len(detail.Stations) != 1 || detail.Stations[0].ID != station.ID {
		t.Errorf("Expected the new station in center detail, got %+v", detail.Stations)
	}

	filters := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"ward", "?ward_id=" + e.WardID, 2},
		{"other ward", "?ward_id=" + e.OtherWardID, 1},
		{"neighborhood", "?neighborhood_id=" + e.NeighborhoodID, 2},
	}
	for _, tt := range filters {
		t.Run(tt.name, func(t *testing.T) {
			w := call(h.ListCenters, "GET", "/centres-de-vote"+tt.query, nil, nil)
			testutil.AssertStatus(t, w, http.StatusOK)
			var centers []models.PollingCenter
			testutil.AssertJSON(t, w, &centers)
			if len(centers) != tt.want {
				t.Errorf("Expected %d centers, got %d", tt.want, len(centers))
			}
		})
	}

	w = call(h.ListStations, "GET", "/postes?center_id="+e.CenterID, nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var stations []models.PollingStation
	testutil.AssertJSON(t, w, &stations)
	if len(stations) != 2 || stations[0].Number != 1 || stations[1].Number != 2 {
		t.Errorf("Expected stations 1 and 2 in order, got %+v", stations)
	}

	w = call(h.GetStation, "GET", "/postes/missing", nil, nil, "id", "missing")
	testutil.AssertStatus(t, w, http.StatusNotFound)
}
