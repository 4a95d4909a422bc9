// server/http/handlers.go
package http

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/filesystem"
	"github.com/ViniZap4/lumi-notes/richtext"
)

type folderRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type updateNoteRequest struct {
	Title    *string         `json:"title" validate:"omitempty,max=500"`
	Content  json.RawMessage `json:"content"`
	IsPinned *bool           `json:"is_pinned"`
	FolderID json.RawMessage `json:"folder_id"`
}

type moveRequest struct {
	FolderID *string `json:"folder_id"`
}

type selectRequest struct {
	NoteID   *string         `json:"note_id"`
	FolderID json.RawMessage `json:"folder_id"`
}

// bind parses the JSON body into v and validates it.
func (s *Server) bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return &domain.ValidationError{Field: "body", Message: err.Error()}
	}
	return s.validate.Struct(v)
}

// nullableID decodes a field that may be absent, null or a string. set is
// false when the field was absent.
func nullableID(raw json.RawMessage) (id *string, set bool, err error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, true, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, &domain.ValidationError{Field: "folder_id", Message: "must be a string or null"}
	}
	return &v, true, nil
}

func (s *Server) HandleFolders(c *fiber.Ctx) error {
	return c.JSON(s.workspace.Folders())
}

func (s *Server) HandleCreateFolder(c *fiber.Ctx) error {
	var req folderRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	f, err := s.workspace.CreateFolder(c.UserContext(), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(f)
}

func (s *Server) HandleRenameFolder(c *fiber.Ctx) error {
	var req folderRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	f, err := s.workspace.RenameFolder(c.UserContext(), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(f)
}

func (s *Server) HandleDeleteFolder(c *fiber.Ctx) error {
	if err := s.workspace.DeleteFolder(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleNotes lists the selected folder's notes. mode=fuzzy ranks by fuzzy
// match instead of filtering by substring.
func (s *Server) HandleNotes(c *fiber.Ctx) error {
	var list []domain.Summary
	if c.Query("mode") == "fuzzy" {
		list = s.workspace.Search(c.Query("q"))
	} else {
		list = s.workspace.Visible(c.Query("q"))
	}
	if list == nil {
		list = []domain.Summary{}
	}
	return c.JSON(list)
}

func (s *Server) HandleCreateNote(c *fiber.Ctx) error {
	sum, err := s.workspace.CreateNote(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sum)
}

func (s *Server) HandleGetNote(c *fiber.Ctx) error {
	note, err := s.store.GetNote(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(note)
}

// HandleUpdateNote writes the given fields directly, bypassing debounce.
func (s *Server) HandleUpdateNote(c *fiber.Ctx) error {
	var req updateNoteRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	patch := domain.NotePatch{Title: req.Title, IsPinned: req.IsPinned}
	if len(req.Content) > 0 {
		doc, err := richtext.Parse(req.Content)
		if err != nil {
			return &domain.ValidationError{Field: "content", Message: err.Error()}
		}
		if patch.Content, err = doc.JSON(); err != nil {
			return err
		}
	}
	folder, set, err := nullableID(req.FolderID)
	if err != nil {
		return err
	}
	if set {
		patch.FolderID = folder
		patch.ClearFolder = folder == nil
	}

	note, err := s.workspace.UpdateNote(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(note)
}

func (s *Server) HandleDeleteNote(c *fiber.Ctx) error {
	if err := s.workspace.DeleteNote(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) HandleTogglePin(c *fiber.Ctx) error {
	sum, err := s.workspace.TogglePin(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

func (s *Server) HandleMoveNote(c *fiber.Ctx) error {
	var req moveRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	sum, err := s.workspace.MoveNote(c.UserContext(), c.Params("id"), req.FolderID)
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

func (s *Server) HandleNoteHTML(c *fiber.Ctx) error {
	note, err := s.store.GetNote(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	doc, _ := note.Document()
	c.Type("html", "utf-8")
	return c.SendString(richtext.HTML(doc))
}

func (s *Server) HandleNoteMarkdown(c *fiber.Ctx) error {
	note, err := s.store.GetNote(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	doc, _ := note.Document()
	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return c.SendString(richtext.Markdown(doc))
}

func (s *Server) HandleSelection(c *fiber.Ctx) error {
	return c.JSON(s.workspace.Selection())
}

func (s *Server) HandleSelect(c *fiber.Ctx) error {
	var req selectRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	folder, set, err := nullableID(req.FolderID)
	if err != nil {
		return err
	}
	if set {
		if err := s.workspace.SelectFolder(folder); err != nil {
			return err
		}
	}
	if req.NoteID != nil {
		if err := s.workspace.SelectNote(*req.NoteID); err != nil {
			return err
		}
	}
	return c.JSON(s.workspace.Selection())
}

// HandleImport creates a note from a markdown body, filed under the selected
// folder.
func (s *Server) HandleImport(c *fiber.Ctx) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return &domain.ValidationError{Field: "body", Message: "must not be empty"}
	}

	title, doc := filesystem.ParseImport(body)
	content, err := doc.JSON()
	if err != nil {
		return err
	}
	sum, err := s.workspace.AddNote(c.UserContext(), domain.NewNote{
		Title:    title,
		Content:  content,
		FolderID: s.workspace.Selection().FolderID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sum)
}

func (s *Server) HandleExport(c *fiber.Ctx) error {
	n, err := filesystem.Export(c.UserContext(), s.exportDir, s.store)
	if err != nil {
		return err
	}
	s.log.Info().Int("notes", n).Str("dir", s.exportDir).Msg("workspace exported")
	return c.JSON(fiber.Map{"written": n, "dir": s.exportDir})
}
