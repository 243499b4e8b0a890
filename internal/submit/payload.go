package submit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"time"
)

// buildMultipart assembles the transport payload. Single-question tests
// send one audio field plus the question text; multi-question tests send
// one indexed audio field per question plus a JSON question list and
// metadata. A merged artifact replaces the per-question fields with a
// single combined audio field.
func buildMultipart(req *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writeAudioFields(writer, req); err != nil {
		return nil, "", err
	}

	if err := writer.WriteField("testType", req.TestType); err != nil {
		return nil, "", fmt.Errorf("failed to write testType field: %w", err)
	}

	if len(req.Questions) == 1 && req.Merged == nil {
		if err := writer.WriteField("question", req.Questions[0]); err != nil {
			return nil, "", fmt.Errorf("failed to write question field: %w", err)
		}
	} else {
		questionsJSON, err := json.Marshal(req.Questions)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode questions: %w", err)
		}
		if err := writer.WriteField("questions", string(questionsJSON)); err != nil {
			return nil, "", fmt.Errorf("failed to write questions field: %w", err)
		}
		if err := writeMetadataField(writer, req); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func writeAudioFields(writer *multipart.Writer, req *Request) error {
	if req.Merged != nil {
		// The merged bytes are in whatever container the source segments
		// used, so the filename follows the segments, not a fixed format.
		ext := "bin"
		if len(req.Answers) > 0 {
			ext = req.Answers[0].FileExtension()
		}
		filename := fmt.Sprintf("%s_answer.%s", req.TestType, ext)
		fw, err := writer.CreateFormFile("audio", filename)
		if err != nil {
			return fmt.Errorf("failed to create audio form file: %w", err)
		}
		if _, err := fw.Write(req.Merged.Data); err != nil {
			return fmt.Errorf("failed to write merged audio: %w", err)
		}
		return nil
	}

	if len(req.Answers) == 1 {
		seg := req.Answers[0]
		filename := fmt.Sprintf("%s_answer.%s", req.TestType, seg.FileExtension())
		fw, err := writer.CreateFormFile("audio", filename)
		if err != nil {
			return fmt.Errorf("failed to create audio form file: %w", err)
		}
		if _, err := fw.Write(seg.Data); err != nil {
			return fmt.Errorf("failed to write audio data: %w", err)
		}
		return nil
	}

	for i, seg := range req.Answers {
		field := fmt.Sprintf("audio_%d", i)
		filename := fmt.Sprintf("%s_q%d.%s", req.TestType, i+1, seg.FileExtension())
		fw, err := writer.CreateFormFile(field, filename)
		if err != nil {
			return fmt.Errorf("failed to create form file %s: %w", field, err)
		}
		if _, err := fw.Write(seg.Data); err != nil {
			return fmt.Errorf("failed to write audio data for %s: %w", field, err)
		}
	}
	return nil
}

func writeMetadataField(writer *multipart.Writer, req *Request) error {
	metadata := map[string]any{
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"questionCount": len(req.Questions),
		"totalDuration": req.totalDuration(),
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := writer.WriteField("metadata", string(metadataJSON)); err != nil {
		return fmt.Errorf("failed to write metadata field: %w", err)
	}
	return nil
}
