package server

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/specialistvlad/wfengine/internal/commands"
	"github.com/specialistvlad/wfengine/internal/execstate"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

type openProjectRequest struct {
	Name string `json:"name"`
}

type changeStateRequest struct {
	NodeIDs []nodeid.ID `json:"nodeIds"`
	Action  string      `json:"action"`
	// Wait holds the response until the execution is over.
	Wait bool `json:"wait"`
}

type loopStateRequest struct {
	Action string `json:"action"`
	Wait   bool   `json:"wait"`
}

func (s *Server) listCatalog(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"factories": s.catalog.Factories()})
}

func (s *Server) openProject(c fiber.Ctx) error {
	var req openProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := s.reg.Open(c.Context(), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p.Info())
}

func (s *Server) listProjects(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"projects": s.reg.List()})
}

func (s *Server) closeProject(c fiber.Ctx) error {
	if err := s.reg.CloseProject(c.Params("pid")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) getWorkflow(c fiber.Ctx) error {
	p, err := s.project(c)
	if err != nil {
		return err
	}
	id, err := container(c)
	if err != nil {
		return err
	}
	tree, snapshotID, err := p.State(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"snapshotId": snapshotID, "workflow": tree})
}

func (s *Server) getDiff(c fiber.Ctx) error {
	p, err := s.project(c)
	if err != nil {
		return err
	}
	id, err := container(c)
	if err != nil {
		return err
	}
	base := strings.TrimSpace(c.Query("base"))
	if base == "" {
		return wferr.InvalidInput("server.getDiff", "Query parameter base is required")
	}
	diff, snapshotID, err := p.Diff(c.Context(), id, base)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"snapshotId": snapshotID, "patch": diff})
}

func (s *Server) executeCommand(c fiber.Ctx) error {
	p, err := s.project(c)
	if err != nil {
		return err
	}
	id, err := container(c)
	if err != nil {
		return err
	}
	cmd, err := commands.Decode(c.Body())
	if err != nil {
		return err
	}
	res, err := p.Execute(c.Context(), id, cmd)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) undo(c fiber.Ctx) error {
	return s.travel(c, true)
}

func (s *Server) redo(c fiber.Ctx) error {
	return s.travel(c, false)
}

func (s *Server) travel(c fiber.Ctx, undo bool) error {
	p, err := s.project(c)
	if err != nil {
		return err
	}
	id, err := container(c)
	if err != nil {
		return err
	}
	var out *commands.Outcome
	if undo {
		out, err = p.Undo(c.Context(), id)
	} else {
		out, err = p.Redo(c.Context(), id)
	}
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) changeNodeState(c fiber.Ctx) error {
	p, err := s.project(c)
	if err != nil {
		return err
	}
	id, err := container(c)
	if err != nil {
		return err
	}
	var req changeStateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	h, err := p.ChangeNodeState(c.Context(), id, req.NodeIDs, req.Action)
	if err != nil {
		return err
	}
	return s.respondHandle(c, h, req.Wait)
}

func (s *Server) changeLoopState(c fiber.Ctx) error {
	p, err := s.project(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "nid")
	if err != nil {
		return err
	}
	var req loopStateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	h, err := p.ChangeLoopState(c.Context(), id, req.Action)
	if err != nil {
		return err
	}
	return s.respondHandle(c, h, req.Wait)
}

func (s *Server) respondHandle(c fiber.Ctx, h *execstate.Handle, wait bool) error {
	if !wait {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), s.wait)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "done"})
}
