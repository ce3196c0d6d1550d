package mmd

import (
	"fmt"

	"go.uber.org/zap"
)

// Stage is a positional section of a .pmx file. Sections have no tags or
// offsets, so they can only be read in this order.
type Stage int

const (
	StageHeader Stage = iota
	StageModelInfo
	StageVertices
	StageFaces
	StageTextures
	StageMaterials
	StageBones
	StageMorphs
	StageFrames
	StageRigidBodies
	StageJoints
	StageSoftBodies
	StageDone

	stageFailed Stage = -1
)

var stageNames = [...]string{
	"header", "model info", "vertices", "faces", "textures", "materials",
	"bones", "morphs", "frames", "rigid bodies", "joints", "soft bodies", "done",
}

func (s Stage) String() string {
	if s == stageFailed {
		return "failed"
	}
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// stage is the common part of every stage handle. A handle is valid only
// while its parser is positioned at that stage; reusing a handle or using a
// zero value fails with ErrStageOrder without touching the stream.
type stage struct {
	p *PMXParser
}

func enter(s *stage, want Stage) error {
	if s == nil || s.p == nil {
		return fmt.Errorf("%w: %v stage handle was not obtained from the previous stage", ErrStageOrder, want)
	}
	if s.p.stage != want {
		return fmt.Errorf("%w: cannot read %v, parser is at %v", ErrStageOrder, want, s.p.stage)
	}
	return nil
}

// leave finishes a stage. On failure the parser is poisoned so that no later
// stage can run on a desynchronized stream.
func leave(s *stage, cur, next Stage, n int) error {
	p := s.p
	if p.err != nil {
		p.stage = stageFailed
		return &DecodeError{Stage: cur, Offset: p.offset, Err: p.err}
	}
	p.log.Debug("pmx section", zap.Stringer("stage", cur), zap.Int("count", n))
	p.stage = next
	return nil
}

type ModelInfoStage stage
type VerticesStage stage
type FacesStage stage
type TexturesStage stage
type MaterialsStage stage
type BonesStage stage
type MorphsStage stage
type FramesStage stage
type RigidBodiesStage stage
type JointsStage stage
type SoftBodiesStage stage

// Header returns the format config read from the file header, or the zero
// FormatConfig (Version 0) for a handle that did not come from Open.
func (s *ModelInfoStage) Header() FormatConfig {
	if s == nil || s.p == nil || s.p.cfg == nil {
		return FormatConfig{}
	}
	return *s.p.cfg
}

func (s *ModelInfoStage) Read() (*ModelInfo, *VerticesStage, error) {
	if err := enter((*stage)(s), StageModelInfo); err != nil {
		return nil, nil, err
	}
	info := s.p.readModelInfo()
	if err := leave((*stage)(s), StageModelInfo, StageVertices, 1); err != nil {
		return nil, nil, err
	}
	return info, &VerticesStage{s.p}, nil
}

func (s *VerticesStage) Read() ([]*Vertex, *FacesStage, error) {
	if err := enter((*stage)(s), StageVertices); err != nil {
		return nil, nil, err
	}
	v := readList(s.p, s.p.readVertex)
	if err := leave((*stage)(s), StageVertices, StageFaces, len(v)); err != nil {
		return nil, nil, err
	}
	return v, &FacesStage{s.p}, nil
}

func (s *FacesStage) Read() ([]*Face, *TexturesStage, error) {
	if err := enter((*stage)(s), StageFaces); err != nil {
		return nil, nil, err
	}
	f := s.p.readFaces()
	if err := leave((*stage)(s), StageFaces, StageTextures, len(f)); err != nil {
		return nil, nil, err
	}
	return f, &TexturesStage{s.p}, nil
}

func (s *TexturesStage) Read() ([]string, *MaterialsStage, error) {
	if err := enter((*stage)(s), StageTextures); err != nil {
		return nil, nil, err
	}
	t := readList(s.p, func() string {
		return s.p.readText(s.p.cfg.Encoding)
	})
	if err := leave((*stage)(s), StageTextures, StageMaterials, len(t)); err != nil {
		return nil, nil, err
	}
	return t, &MaterialsStage{s.p}, nil
}

func (s *MaterialsStage) Read() ([]*Material, *BonesStage, error) {
	if err := enter((*stage)(s), StageMaterials); err != nil {
		return nil, nil, err
	}
	m := readList(s.p, s.p.readMaterial)
	if err := leave((*stage)(s), StageMaterials, StageBones, len(m)); err != nil {
		return nil, nil, err
	}
	return m, &BonesStage{s.p}, nil
}

func (s *BonesStage) Read() ([]*Bone, *MorphsStage, error) {
	if err := enter((*stage)(s), StageBones); err != nil {
		return nil, nil, err
	}
	b := readList(s.p, s.p.readBone)
	if err := leave((*stage)(s), StageBones, StageMorphs, len(b)); err != nil {
		return nil, nil, err
	}
	return b, &MorphsStage{s.p}, nil
}

func (s *MorphsStage) Read() ([]*Morph, *FramesStage, error) {
	if err := enter((*stage)(s), StageMorphs); err != nil {
		return nil, nil, err
	}
	m := readList(s.p, s.p.readMorph)
	if err := leave((*stage)(s), StageMorphs, StageFrames, len(m)); err != nil {
		return nil, nil, err
	}
	return m, &FramesStage{s.p}, nil
}

func (s *FramesStage) Read() ([]*Frame, *RigidBodiesStage, error) {
	if err := enter((*stage)(s), StageFrames); err != nil {
		return nil, nil, err
	}
	f := readList(s.p, s.p.readFrame)
	if err := leave((*stage)(s), StageFrames, StageRigidBodies, len(f)); err != nil {
		return nil, nil, err
	}
	return f, &RigidBodiesStage{s.p}, nil
}

func (s *RigidBodiesStage) Read() ([]*RigidBody, *JointsStage, error) {
	if err := enter((*stage)(s), StageRigidBodies); err != nil {
		return nil, nil, err
	}
	r := readList(s.p, s.p.readRigidBody)
	if err := leave((*stage)(s), StageRigidBodies, StageJoints, len(r)); err != nil {
		return nil, nil, err
	}
	return r, &JointsStage{s.p}, nil
}

// Read reads the joints. The returned SoftBodiesStage is nil for 2.0 files,
// which end after the joints.
func (s *JointsStage) Read() ([]*Joint, *SoftBodiesStage, error) {
	if err := enter((*stage)(s), StageJoints); err != nil {
		return nil, nil, err
	}
	j := readList(s.p, s.p.readJoint)
	if !s.p.cfg.HasSoftBodies() {
		if err := leave((*stage)(s), StageJoints, StageDone, len(j)); err != nil {
			return nil, nil, err
		}
		return j, nil, nil
	}
	if err := leave((*stage)(s), StageJoints, StageSoftBodies, len(j)); err != nil {
		return nil, nil, err
	}
	return j, &SoftBodiesStage{s.p}, nil
}

func (s *SoftBodiesStage) Read() ([]*SoftBody, error) {
	if err := enter((*stage)(s), StageSoftBodies); err != nil {
		return nil, err
	}
	b := readList(s.p, s.p.readSoftBody)
	if err := leave((*stage)(s), StageSoftBodies, StageDone, len(b)); err != nil {
		return nil, err
	}
	return b, nil
}
