package clustertracker

import (
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"

	"github.com/platzio/platz/internal/dbstore"
)

// statusColorsForDeployment computes the status_color sequence spec.md
// §4.6 defines for a Deployment workload: one Success per available
// replica, one Danger per unavailable one.
func statusColorsForDeployment(d *appsv1.Deployment) []dbstore.StatusColor {
	avail := int(d.Status.AvailableReplicas)
	total := int(d.Status.Replicas)
	unavail := total - avail
	if unavail < 0 {
		unavail = 0
	}
	out := make([]dbstore.StatusColor, 0, avail+unavail)
	for i := 0; i < avail; i++ {
		out = append(out, dbstore.ColorSuccess)
	}
	for i := 0; i < unavail; i++ {
		out = append(out, dbstore.ColorDanger)
	}
	return out
}

// statusColorsForStatefulSet computes the sequence for a StatefulSet:
// one Success per ready replica, one Danger per unready one.
func statusColorsForStatefulSet(s *appsv1.StatefulSet) []dbstore.StatusColor {
	ready := int(s.Status.ReadyReplicas)
	total := int(s.Status.Replicas)
	unready := total - ready
	if unready < 0 {
		unready = 0
	}
	out := make([]dbstore.StatusColor, 0, ready+unready)
	for i := 0; i < ready; i++ {
		out = append(out, dbstore.ColorSuccess)
	}
	for i := 0; i < unready; i++ {
		out = append(out, dbstore.ColorDanger)
	}
	return out
}

// statusColorsForJob computes the sequence for a Job: Primary per
// active, Success per succeeded, Danger per failed.
func statusColorsForJob(j *batchv1.Job) []dbstore.StatusColor {
	active := int(j.Status.Active)
	succeeded := int(j.Status.Succeeded)
	failed := int(j.Status.Failed)
	out := make([]dbstore.StatusColor, 0, active+succeeded+failed)
	for i := 0; i < active; i++ {
		out = append(out, dbstore.ColorPrimary)
	}
	for i := 0; i < succeeded; i++ {
		out = append(out, dbstore.ColorSuccess)
	}
	for i := 0; i < failed; i++ {
		out = append(out, dbstore.ColorDanger)
	}
	return out
}
