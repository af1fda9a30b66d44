package clustertracker

import (
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"

	"github.com/stretchr/testify/assert"

	"github.com/platzio/platz/internal/dbstore"
)

func TestStatusColorsForDeployment(t *testing.T) {
	d := &appsv1.Deployment{Status: appsv1.DeploymentStatus{Replicas: 3, AvailableReplicas: 2}}
	got := statusColorsForDeployment(d)
	assert.Equal(t, []dbstore.StatusColor{
		dbstore.ColorSuccess, dbstore.ColorSuccess, dbstore.ColorDanger,
	}, got)
}

func TestStatusColorsForDeploymentAllAvailable(t *testing.T) {
	d := &appsv1.Deployment{Status: appsv1.DeploymentStatus{Replicas: 2, AvailableReplicas: 2}}
	got := statusColorsForDeployment(d)
	assert.Equal(t, []dbstore.StatusColor{dbstore.ColorSuccess, dbstore.ColorSuccess}, got)
}

func TestStatusColorsForStatefulSet(t *testing.T) {
	s := &appsv1.StatefulSet{Status: appsv1.StatefulSetStatus{Replicas: 3, ReadyReplicas: 1}}
	got := statusColorsForStatefulSet(s)
	assert.Equal(t, []dbstore.StatusColor{
		dbstore.ColorSuccess, dbstore.ColorDanger, dbstore.ColorDanger,
	}, got)
}

func TestStatusColorsForJob(t *testing.T) {
	j := &batchv1.Job{Status: batchv1.JobStatus{Active: 1, Succeeded: 2, Failed: 1}}
	got := statusColorsForJob(j)
	assert.Equal(t, []dbstore.StatusColor{
		dbstore.ColorPrimary,
		dbstore.ColorSuccess, dbstore.ColorSuccess,
		dbstore.ColorDanger,
	}, got)
}
