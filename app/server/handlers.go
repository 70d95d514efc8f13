package server

import (
	"context"

	"portfolio/app/service/auth"
	"portfolio/app/service/community"
	"portfolio/app/service/interview"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) signUp(c *fiber.Ctx) error {
	var req auth.SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	session, err := s.auth.SignUp(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

func (s *Server) signIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	session, err := s.auth.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(session)
}

func (s *Server) signOut(c *fiber.Ctx) error {
	if err := s.auth.SignOut(c.UserContext(), tokenOf(c)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) currentState(c *fiber.Ctx) error {
	state, err := s.shell.State(tokenOf(c))
	if err != nil {
		return err
	}

	return c.JSON(state)
}

func (s *Server) setView(c *fiber.Ctx) error {
	var req setViewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	state, err := s.shell.SetView(tokenOf(c), req.View)
	if err != nil {
		return err
	}

	return c.JSON(state)
}

func (s *Server) listExperiences(c *fiber.Ctx) error {
	list, err := s.community.List(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(list)
}

func (s *Server) createExperience(c *fiber.Ctx) error {
	var req community.NewExperience
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	req.UserID = sessionOf(c).User.ID

	exp, err := s.community.Create(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(exp)
}

type interviewFunc func(ctx context.Context, ctrl *interview.Controller, c *fiber.Ctx) error

// interviewOp runs op against the session's controller and always answers with its snapshot.
func (s *Server) interviewOp(op interviewFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctrl, err := s.shell.Interview(tokenOf(c))
		if err != nil {
			return err
		}

		status := fiber.StatusOK
		resp := interviewResponse{}

		if op != nil {
			if err = op(c.UserContext(), ctrl, c); err != nil {
				status = statusOf(err)
				resp.Error = err.Error()
			}
		}

		resp.State = ctrl.Snapshot()

		return c.Status(status).JSON(resp)
	}
}

func requestTopics(ctx context.Context, ctrl *interview.Controller, c *fiber.Ctx) error {
	var req configRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	return ctrl.RequestTopics(ctx, req.Domain, req.ExperienceLevel)
}

func selectTopic(ctx context.Context, ctrl *interview.Controller, c *fiber.Ctx) error {
	var req selectTopicRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	return ctrl.SelectTopic(ctx, req.Topic)
}

func startInterview(ctx context.Context, ctrl *interview.Controller, c *fiber.Ctx) error {
	var req configRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	return ctrl.StartInterview(ctx, req.Domain, req.ExperienceLevel)
}

func sendMessage(ctx context.Context, ctrl *interview.Controller, c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	return ctrl.SendUserMessage(ctx, req.Text)
}

func endSession(ctx context.Context, ctrl *interview.Controller, _ *fiber.Ctx) error {
	return ctrl.EndSession(ctx)
}

func changeTopic(_ context.Context, ctrl *interview.Controller, _ *fiber.Ctx) error {
	return ctrl.ChangeTopic()
}

func reset(_ context.Context, ctrl *interview.Controller, _ *fiber.Ctx) error {
	ctrl.Reset()
	return nil
}
