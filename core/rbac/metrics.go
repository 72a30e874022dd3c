package rbac

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var permCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "medrota_iam_permission_cache_lookups_total",
	Help: "Permission cache lookups, by result.",
}, []string{"result"})
