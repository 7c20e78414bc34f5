package membership

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/storacha/silo/pkg/config/app"
)

// Status is the lifecycle status a silo publishes in the directory.
type Status string

const (
	StatusJoining      Status = "Joining"
	StatusActive       Status = "Active"
	StatusShuttingDown Status = "ShuttingDown"
	StatusDead         Status = "Dead"
)

// SiloIdentity identifies one incarnation of a silo. A silo restarted on the
// same address gets a new generation and is a new member.
type SiloIdentity struct {
	ClusterID      string `json:"clusterId"`
	ServiceID      string `json:"serviceId"`
	SiloName       string `json:"siloName"`
	SiloAddress    string `json:"siloAddress"`
	GatewayAddress string `json:"gatewayAddress"`
	Generation     int64  `json:"generation"`
}

// NewSiloIdentity derives the identity of the silo starting at startedAt.
func NewSiloIdentity(cfg app.AppConfig, startedAt time.Time) SiloIdentity {
	host := cfg.Endpoints.AdvertisedHost
	return SiloIdentity{
		ClusterID:      cfg.Cluster.ClusterID,
		ServiceID:      cfg.Cluster.ServiceID,
		SiloName:       fmt.Sprintf("%s_%d", host, cfg.Endpoints.SiloPort),
		SiloAddress:    net.JoinHostPort(host, strconv.Itoa(cfg.Endpoints.SiloPort)),
		GatewayAddress: net.JoinHostPort(host, strconv.Itoa(cfg.Endpoints.GatewayPort)),
		Generation:     startedAt.UnixMilli(),
	}
}

// ID is unique per incarnation: address plus generation.
func (id SiloIdentity) ID() string {
	return id.SiloAddress + "@" + strconv.FormatInt(id.Generation, 10)
}

func (id SiloIdentity) String() string {
	return fmt.Sprintf("%s/%s %s", id.ClusterID, id.SiloName, id.ID())
}

// Entry is a silo's row in the membership directory.
type Entry struct {
	Identity     SiloIdentity `json:"identity"`
	Status       Status       `json:"status"`
	StartTime    time.Time    `json:"startTime"`
	IAmAliveTime time.Time    `json:"iAmAliveTime"`
}
