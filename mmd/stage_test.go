package mmd

import (
	"bytes"
	"errors"
	"testing"
)

func openVertices(t *testing.T, data []byte) *VerticesStage {
	t.Helper()
	s, err := Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	_, vs, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	return vs
}

func TestStageOrder(t *testing.T) {
	t.Run("zero handle", func(t *testing.T) {
		var fs FacesStage
		if _, _, err := fs.Read(); !errors.Is(err, ErrStageOrder) {
			t.Errorf("expected ErrStageOrder, got %v", err)
		}
		var js *JointsStage
		if _, _, err := js.Read(); !errors.Is(err, ErrStageOrder) {
			t.Errorf("expected ErrStageOrder, got %v", err)
		}
		var ms *ModelInfoStage
		if h := ms.Header(); h != (FormatConfig{}) {
			t.Errorf("nil handle header: %+v", h)
		}
		if h := (&ModelInfoStage{}).Header(); h.Version != 0 {
			t.Errorf("zero handle header: %+v", h)
		}
		if _, _, err := ms.Read(); !errors.Is(err, ErrStageOrder) {
			t.Errorf("expected ErrStageOrder, got %v", err)
		}
	})

	t.Run("faces before vertices", func(t *testing.T) {
		vs := openVertices(t, vertexFixture(0, 0))
		offset := vs.p.offset
		fs := &FacesStage{vs.p}
		if _, _, err := fs.Read(); !errors.Is(err, ErrStageOrder) {
			t.Fatalf("expected ErrStageOrder, got %v", err)
		}
		if vs.p.offset != offset {
			t.Errorf("out of order read consumed %d bytes", vs.p.offset-offset)
		}
		verts, _, err := vs.Read()
		if err != nil || len(verts) != 1 {
			t.Errorf("vertices should still be readable: %v", err)
		}
	})

	t.Run("reused handle", func(t *testing.T) {
		vs := openVertices(t, vertexFixture(0, 0))
		if _, _, err := vs.Read(); err != nil {
			t.Fatal(err)
		}
		offset := vs.p.offset
		if _, _, err := vs.Read(); !errors.Is(err, ErrStageOrder) {
			t.Errorf("expected ErrStageOrder, got %v", err)
		}
		if vs.p.offset != offset {
			t.Error("reused handle consumed bytes")
		}
	})

	t.Run("after failure", func(t *testing.T) {
		vs := openVertices(t, vertexFixture(0, 5))
		if _, _, err := vs.Read(); !errors.Is(err, ErrInvalidWeightKind) {
			t.Fatalf("expected ErrInvalidWeightKind, got %v", err)
		}
		if vs.p.stage != stageFailed {
			t.Errorf("parser should be poisoned, stage %v", vs.p.stage)
		}
		if _, _, err := (&FacesStage{vs.p}).Read(); !errors.Is(err, ErrStageOrder) {
			t.Errorf("expected ErrStageOrder, got %v", err)
		}
	})
}

func TestStagesOneByOne(t *testing.T) {
	doc := sampleDocument()
	doc.SoftBodies = []*SoftBody{{Name: "cloth", MaterialID: 0}}
	var buf bytes.Buffer
	if err := WritePMX(doc, &buf, WithEncoding(UTF8)); err != nil {
		t.Fatal(err)
	}

	s, err := Open(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h := s.Header(); h.Version != Version21 || h.Encoding != UTF8 {
		t.Errorf("header: %+v", h)
	}
	info, vs, err := s.Read()
	if err != nil || info.Name != doc.Name {
		t.Fatalf("model info: %v %v", info, err)
	}
	_, fs, err := vs.Read()
	if err != nil {
		t.Fatal(err)
	}
	_, ts, err := fs.Read()
	if err != nil {
		t.Fatal(err)
	}
	_, ms, err := ts.Read()
	if err != nil {
		t.Fatal(err)
	}
	_, bs, err := ms.Read()
	if err != nil {
		t.Fatal(err)
	}
	_, mps, err := bs.Read()
	if err != nil {
		t.Fatal(err)
	}
	_, frs, err := mps.Read()
	if err != nil {
		t.Fatal(err)
	}
	_, rs, err := frs.Read()
	if err != nil {
		t.Fatal(err)
	}
	_, js, err := rs.Read()
	if err != nil {
		t.Fatal(err)
	}
	_, sbs, err := js.Read()
	if err != nil {
		t.Fatal(err)
	}
	if sbs == nil {
		t.Fatal("2.1 file should have a soft body stage")
	}
	soft, err := sbs.Read()
	if err != nil || len(soft) != 1 || soft[0].Name != "cloth" {
		t.Errorf("soft bodies: %v %v", soft, err)
	}
	if _, err := sbs.Read(); !errors.Is(err, ErrStageOrder) {
		t.Errorf("expected ErrStageOrder after done, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes left unread", buf.Len())
	}
}

func TestStageString(t *testing.T) {
	if StageRigidBodies.String() != "rigid bodies" || stageFailed.String() != "failed" || Stage(99).String() != "Stage(99)" {
		t.Error("unexpected stage names")
	}
}
