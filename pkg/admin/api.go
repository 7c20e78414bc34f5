package admin

import (
	"net/http"
	"sort"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
)

// Prefix is the path the admin routes are mounted under.
const Prefix = "/admin"

// RegisterRoutes registers the log level routes on e under Prefix.
func RegisterRoutes(e *echo.Echo) {
	g := e.Group(Prefix)
	g.GET("/log/subsystems", listLogSubsystems)
	g.GET("/log/level", listLogLevels)
	g.POST("/log/level", setLogLevel)
}

type ListLogSubsystemsResponse struct {
	Subsystems []string `json:"subsystems"`
}

type ListLogLevelsResponse struct {
	Levels map[string]string `json:"levels"`
}

type SetLogLevelRequest struct {
	Subsystem string `json:"subsystem"`
	Level     string `json:"level"`
}

func listLogSubsystems(c echo.Context) error {
	subsystems := logging.GetSubsystems()
	sort.Strings(subsystems)
	return c.JSON(http.StatusOK, &ListLogSubsystemsResponse{Subsystems: subsystems})
}

func listLogLevels(c echo.Context) error {
	subsystems := logging.GetSubsystems()
	levels := make(map[string]string, len(subsystems))
	for _, subsystem := range subsystems {
		levels[subsystem] = logging.Logger(subsystem).Level().String()
	}
	return c.JSON(http.StatusOK, &ListLogLevelsResponse{Levels: levels})
}

func setLogLevel(c echo.Context) error {
	var req SetLogLevelRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if req.Subsystem == "" {
		return c.String(http.StatusBadRequest, "subsystem is required")
	}
	if req.Level == "" {
		return c.String(http.StatusBadRequest, "level is required")
	}

	if req.Subsystem == AllSubsystems {
		lvl, err := logging.LevelFromString(req.Level)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		logging.SetAllLoggers(lvl)
		return c.NoContent(http.StatusOK)
	}

	if err := logging.SetLogLevel(req.Subsystem, req.Level); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusOK)
}
