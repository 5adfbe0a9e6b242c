package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/dunamismax/bgremove/internal/domain"
	"github.com/dunamismax/bgremove/internal/removal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Result struct {
	Data        []byte
	Format      domain.OutputFormat
	ContentType string
	Width       int
	Height      int
}

type Processor struct {
	codec   Codec
	remover removal.Remover
	tracer  trace.Tracer
}

func NewProcessor(remover removal.Remover) (*Processor, error) {
	if remover == nil {
		return nil, errors.New("remover is required")
	}

	return &Processor{
		codec:   newCodec(),
		remover: remover,
		tracer:  otel.Tracer("bgremove/pipeline"),
	}, nil
}

// Process decodes input, strips its background and encodes the result in
// format. Any failure is a *StageError.
func (p *Processor) Process(ctx context.Context, input []byte, format domain.OutputFormat) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process")
	span.SetAttributes(
		attribute.Int("image.input_bytes", len(input)),
		attribute.String("image.output_format", format.String()),
	)
	defer span.End()

	result, err := p.process(ctx, input, format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(StageOf(err)))
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("image.width", result.Width),
		attribute.Int("image.height", result.Height),
		attribute.Int("image.output_bytes", len(result.Data)),
	)
	span.SetStatus(codes.Ok, "processed")
	return result, nil
}

func (p *Processor) process(ctx context.Context, input []byte, format domain.OutputFormat) (Result, error) {
	src, err := p.decode(ctx, input)
	if err != nil {
		return Result{}, stageErr(StageDecode, err)
	}

	out, err := p.remove(ctx, src)
	if err != nil {
		return Result{}, stageErr(StageRemove, err)
	}

	if !format.HasAlpha() {
		flat, err := flattenOnWhite(out)
		if err != nil {
			return Result{}, stageErr(StageComposite, err)
		}
		out = flat
	}

	data, err := p.encode(ctx, out, format)
	if err != nil {
		return Result{}, stageErr(StageEncode, err)
	}

	bounds := out.Bounds()
	return Result{
		Data:        data,
		Format:      format,
		ContentType: format.ContentType(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func (p *Processor) decode(ctx context.Context, input []byte) (image.Image, error) {
	_, span := p.tracer.Start(ctx, "pipeline.decode")
	defer span.End()

	if len(input) == 0 {
		return nil, ErrEmptyInput
	}
	return p.codec.Decode(input)
}

func (p *Processor) remove(ctx context.Context, src image.Image) (image.Image, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.remove")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := p.remover.Remove(ctx, src)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNilResult
	}

	want, got := src.Bounds().Size(), out.Bounds().Size()
	if want != got {
		return nil, fmt.Errorf("%w: %dx%d -> %dx%d", ErrSizeMismatch, want.X, want.Y, got.X, got.Y)
	}
	return out, nil
}

func (p *Processor) encode(ctx context.Context, img image.Image, format domain.OutputFormat) ([]byte, error) {
	_, span := p.tracer.Start(ctx, "pipeline.encode")
	defer span.End()

	return p.codec.Encode(img, format)
}
