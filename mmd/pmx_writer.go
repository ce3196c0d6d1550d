package mmd

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"
)

// PMXWriter is writer for .pmx data
type PMXWriter struct {
	w    io.Writer
	opts *options
}

func NewPMXWriter(w io.Writer, opts ...Option) *PMXWriter {
	return &PMXWriter{w: w, opts: newOptions(opts)}
}

// pmxEncoder serializes one document with a derived FormatConfig.
type pmxEncoder struct {
	baseWriter
	cfg   *FormatConfig
	sizes []byte
	stage Stage
}

// Write encodes doc. doc.Header is ignored; the header is derived from the
// data. Nothing is written to the destination unless every section encodes.
func (w *PMXWriter) Write(doc *Document) error {
	cfg, err := DeriveFormatConfig(doc, w.opts.encoding)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	e := &pmxEncoder{baseWriter: baseWriter{w: &buf}, cfg: cfg, sizes: cfg.info()}
	if err := e.encode(doc); err != nil {
		return err
	}
	w.opts.logger.Debug("pmx encoded",
		zap.Float32("version", cfg.Version),
		zap.Stringer("encoding", cfg.Encoding),
		zap.Binary("index_sizes", e.sizes[AttrVertIndexSz:]),
		zap.Int("bytes", buf.Len()))
	_, err = buf.WriteTo(w.w)
	return err
}

// enter starts a section. It reports false once any earlier section has
// failed, so the error keeps naming the section that caused it.
func (e *pmxEncoder) enter(s Stage, n int) bool {
	if e.err != nil {
		return false
	}
	e.stage = s
	e.writeInt(n)
	return e.err == nil
}

func (e *pmxEncoder) encode(doc *Document) error {
	e.stage = StageHeader
	writeHeader(&e.baseWriter, e.cfg)

	if e.err == nil {
		e.stage = StageModelInfo
		e.writeString(doc.Name)
		e.writeString(doc.NameEn)
		e.writeString(doc.Comment)
		e.writeString(doc.CommentEn)
	}

	if e.enter(StageVertices, len(doc.Vertexes)) {
		for i := 0; i < len(doc.Vertexes) && e.err == nil; i++ {
			e.writeVertex(doc.Vertexes[i])
		}
	}

	if e.enter(StageFaces, len(doc.Faces)*3) {
		for i := 0; i < len(doc.Faces) && e.err == nil; i++ {
			e.writeFace(doc.Faces[i])
		}
	}

	if e.enter(StageTextures, len(doc.Textures)) {
		for i := 0; i < len(doc.Textures) && e.err == nil; i++ {
			e.writeString(doc.Textures[i])
		}
	}

	if e.enter(StageMaterials, len(doc.Materials)) {
		for i := 0; i < len(doc.Materials) && e.err == nil; i++ {
			e.writeMaterial(doc.Materials[i])
		}
	}

	if e.enter(StageBones, len(doc.Bones)) {
		for i := 0; i < len(doc.Bones) && e.err == nil; i++ {
			e.writeBone(doc.Bones[i])
		}
	}

	if e.enter(StageMorphs, len(doc.Morphs)) {
		for i := 0; i < len(doc.Morphs) && e.err == nil; i++ {
			e.writeMorph(doc.Morphs[i])
		}
	}

	if e.enter(StageFrames, len(doc.Frames)) {
		for i := 0; i < len(doc.Frames) && e.err == nil; i++ {
			e.writeFrame(doc.Frames[i])
		}
	}

	if e.enter(StageRigidBodies, len(doc.RigidBodies)) {
		for i := 0; i < len(doc.RigidBodies) && e.err == nil; i++ {
			e.writeRigidBody(doc.RigidBodies[i])
		}
	}

	if e.enter(StageJoints, len(doc.Joints)) {
		for i := 0; i < len(doc.Joints) && e.err == nil; i++ {
			e.writeJoint(doc.Joints[i])
		}
	}

	if e.cfg.HasSoftBodies() && e.enter(StageSoftBodies, len(doc.SoftBodies)) {
		for i := 0; i < len(doc.SoftBodies) && e.err == nil; i++ {
			e.writeSoftBody(doc.SoftBodies[i])
		}
	}

	if e.err != nil {
		return fmt.Errorf("pmx: writing %v: %w", e.stage, e.err)
	}
	return nil
}

func (e *pmxEncoder) writeString(s string) {
	e.writeText(s, e.cfg.Encoding)
}

func (e *pmxEncoder) writeIndex(attrTyp int, v int) {
	e.writeVInt(e.sizes[attrTyp], v)
}

func (e *pmxEncoder) writeVertexIndex(v int) {
	e.writeVUInt(e.cfg.VertexIndexSize, v)
}

func (e *pmxEncoder) writeVertex(v *Vertex) {
	e.writeVector3(v.Pos)
	e.writeVector3(v.Normal)
	e.writeVector2(v.UV)
	for i := 0; i < e.cfg.ExtUVCount; i++ {
		if i < len(v.ExtUVs) {
			e.writeVector4(v.ExtUVs[i])
		} else {
			e.writeVector4(Vector4{})
		}
	}

	w := &v.Weight
	if err := w.check(); err != nil {
		e.fail(err)
		return
	}
	e.writeUint8(uint8(w.Type))
	for _, b := range w.Bones {
		e.writeIndex(AttrBoneIndexSz, b)
	}
	switch w.Type {
	case WeightBDEF2:
		e.writeFloat(w.Weights[0])
	case WeightSDEF:
		e.writeFloat(w.Weights[0])
		var sdef SDEFParams
		if w.SDEF != nil {
			sdef = *w.SDEF
		}
		e.writeVector3(sdef.C)
		e.writeVector3(sdef.R0)
		e.writeVector3(sdef.R1)
	case WeightBDEF4, WeightQDEF:
		for _, wt := range w.Weights[:4] {
			e.writeFloat(wt)
		}
	}
	e.writeFloat(v.EdgeScale)
}

// check reports whether the weight carries what its type needs on disk.
func (w *Weight) check() error {
	n := w.Type.BoneCount()
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWeightKind, w.Type)
	}
	if len(w.Bones) != n {
		return fmt.Errorf("%w: %v needs %d bones, got %d", ErrInvalidWeightKind, w.Type, n, len(w.Bones))
	}
	need := 0
	switch w.Type {
	case WeightBDEF2, WeightSDEF:
		need = 1
	case WeightBDEF4, WeightQDEF:
		need = 4
	}
	if len(w.Weights) < need {
		return fmt.Errorf("%w: %v needs %d weights, got %d", ErrInvalidWeightKind, w.Type, need, len(w.Weights))
	}
	return nil
}

func (e *pmxEncoder) writeFace(f *Face) {
	e.writeVertexIndex(f.Verts[0])
	e.writeVertexIndex(f.Verts[1])
	e.writeVertexIndex(f.Verts[2])
}

func (e *pmxEncoder) writeMaterial(m *Material) {
	if !m.EnvMode.valid() {
		e.fail(fmt.Errorf("%w: sphere mode %d", ErrInvalidData, m.EnvMode))
		return
	}
	if !m.ToonType.valid() {
		e.fail(fmt.Errorf("%w: toon mode %d", ErrInvalidData, m.ToonType))
		return
	}
	e.writeString(m.Name)
	e.writeString(m.NameEn)
	e.writeVector4(m.Color)
	e.writeVector3(m.Specular)
	e.writeFloat(m.Specularity)
	e.writeVector3(m.AColor)
	e.writeUint8(m.Flags)
	e.writeVector4(m.EdgeColor)
	e.writeFloat(m.EdgeScale)

	e.writeIndex(AttrTexIndexSz, m.TextureID)
	e.writeIndex(AttrTexIndexSz, m.EnvID)

	e.writeUint8(uint8(m.EnvMode))
	e.writeUint8(uint8(m.ToonType))
	if m.ToonType == ToonModeSeparate {
		e.writeIndex(AttrTexIndexSz, m.Toon)
	} else {
		if m.Toon < 0 || m.Toon > math.MaxUint8 {
			e.fail(fmt.Errorf("%w: shared toon %d", ErrInvalidData, m.Toon))
			return
		}
		e.writeUint8(uint8(m.Toon))
	}

	e.writeString(m.Memo)
	e.writeInt(m.Count)
}

func (e *pmxEncoder) writeBone(b *Bone) {
	e.writeString(b.Name)
	e.writeString(b.NameEn)
	e.writeVector3(b.Pos)

	e.writeIndex(AttrBoneIndexSz, b.ParentID)
	e.writeInt(b.Layer)

	e.writeUint16(b.Flags)

	if b.Flags&BoneFlagTailIndex != 0 {
		e.writeIndex(AttrBoneIndexSz, b.TailID)
	} else {
		e.writeVector3(b.TailPos)
	}

	if b.Flags&(BoneFlagInheritRotation|BoneFlagInheritTranslation) != 0 {
		e.writeIndex(AttrBoneIndexSz, b.InheritParentID)
		e.writeFloat(b.InheritParentInfluence)
	}

	if b.Flags&BoneFlagFixedAxis != 0 {
		e.writeVector3(b.FixedAxis)
	}

	if b.Flags&BoneFlagLocalAxis != 0 {
		e.writeVector3(b.LocalAxisX)
		e.writeVector3(b.LocalAxisZ)
	}

	if b.Flags&BoneFlagExternalParent != 0 {
		e.writeInt(b.ExternalParentKey)
	}

	if b.Flags&BoneFlagEnableIK != 0 {
		e.writeIndex(AttrBoneIndexSz, b.IK.TargetID)
		e.writeInt(b.IK.Loop)
		e.writeFloat(b.IK.LimitRad)
		e.writeInt(len(b.IK.Links))
		for _, l := range b.IK.Links {
			e.writeIndex(AttrBoneIndexSz, l.TargetID)
			e.writeBool(l.HasLimit)
			if l.HasLimit {
				e.writeVector3(l.LimitMin)
				e.writeVector3(l.LimitMax)
			}
		}
	}
}

func (e *pmxEncoder) writeMorph(m *Morph) {
	if !m.MorphType.valid() {
		e.fail(fmt.Errorf("%w: morph type %d", ErrInvalidData, m.MorphType))
		return
	}
	e.writeString(m.Name)
	e.writeString(m.NameEn)
	e.writeUint8(m.PanelType)
	e.writeUint8(uint8(m.MorphType))
	e.writeInt(m.Len())

	switch m.MorphType {
	case MorphTypeGroup:
		for _, o := range m.Group {
			e.writeIndex(AttrMorphIndexSz, o.Target)
			e.writeFloat(o.Weight)
		}
	case MorphTypeVertex:
		for _, o := range m.Vertex {
			e.writeVertexIndex(o.Target)
			e.writeVector3(o.Offset)
		}
	case MorphTypeBone:
		for _, o := range m.Bone {
			e.writeIndex(AttrBoneIndexSz, o.Target)
			e.writeVector3(o.Translation)
			e.writeVector4(o.Rotation)
		}
	case MorphTypeUV, MorphTypeExtUV1, MorphTypeExtUV2, MorphTypeExtUV3, MorphTypeExtUV4:
		for _, o := range m.UV {
			e.writeVertexIndex(o.Target)
			e.writeVector4(o.Value)
		}
	case MorphTypeMaterial:
		for _, o := range m.Material {
			e.writeIndex(AttrMatIndexSz, o.Target)
			e.writeUint8(o.Flags)
			e.writeVector4(o.Diffuse)
			e.writeVector3(o.Specular)
			e.writeFloat(o.Specularity)
			e.writeVector3(o.Ambient)
			e.writeVector4(o.EdgeColor)
			e.writeFloat(o.EdgeSize)
			e.writeVector4(o.TextureTint)
			e.writeVector4(o.EnvironmentTint)
			e.writeVector4(o.ToonTint)
		}
	case MorphTypeFlip:
		for _, o := range m.Flip {
			e.writeIndex(AttrMorphIndexSz, o.Target)
			e.writeFloat(o.Weight)
		}
	case MorphTypeImpulse:
		for _, o := range m.Impulse {
			e.writeIndex(AttrRBIndexSz, o.Target)
			e.writeBool(o.Local)
			e.writeVector3(o.Velocity)
			e.writeVector3(o.Torque)
		}
	}
}

func (e *pmxEncoder) writeFrame(f *Frame) {
	e.writeString(f.Name)
	e.writeString(f.NameEn)
	e.writeBool(f.Special)
	e.writeInt(len(f.Elements))
	for _, el := range f.Elements {
		e.writeUint8(el.Target)
		switch el.Target {
		case FrameTargetBone:
			e.writeIndex(AttrBoneIndexSz, el.Index)
		case FrameTargetMorph:
			e.writeIndex(AttrMorphIndexSz, el.Index)
		default:
			e.fail(fmt.Errorf("%w: frame target %d", ErrInvalidData, el.Target))
		}
	}
}

func (e *pmxEncoder) writeRigidBody(r *RigidBody) {
	if !r.Shape.valid() {
		e.fail(fmt.Errorf("%w: rigid body shape %d", ErrInvalidData, r.Shape))
		return
	}
	if !r.Mode.valid() {
		e.fail(fmt.Errorf("%w: rigid body mode %d", ErrInvalidData, r.Mode))
		return
	}
	e.writeString(r.Name)
	e.writeString(r.NameEn)
	e.writeIndex(AttrBoneIndexSz, r.BoneID)
	e.writeUint8(r.Group)
	e.writeUint16(r.NoCollideMask)
	e.writeUint8(uint8(r.Shape))
	e.writeVector3(r.Size)
	e.writeVector3(r.Pos)
	e.writeVector3(r.Rot)
	e.writeFloat(r.Mass)
	e.writeFloat(r.LinearDamping)
	e.writeFloat(r.AngularDamping)
	e.writeFloat(r.Restitution)
	e.writeFloat(r.Friction)
	e.writeUint8(uint8(r.Mode))
}

func (e *pmxEncoder) writeJoint(j *Joint) {
	if !j.Type.valid() {
		e.fail(fmt.Errorf("%w: joint type %d", ErrInvalidData, j.Type))
		return
	}
	e.writeString(j.Name)
	e.writeString(j.NameEn)
	e.writeUint8(uint8(j.Type))
	e.writeIndex(AttrRBIndexSz, j.RigidA)
	e.writeIndex(AttrRBIndexSz, j.RigidB)
	e.writeVector3(j.Pos)
	e.writeVector3(j.Rot)
	e.writeVector3(j.MoveLimitMin)
	e.writeVector3(j.MoveLimitMax)
	e.writeVector3(j.RotLimitMin)
	e.writeVector3(j.RotLimitMax)
	e.writeVector3(j.SpringMove)
	e.writeVector3(j.SpringRot)
}

func (e *pmxEncoder) writeSoftBody(b *SoftBody) {
	if !b.Shape.valid() {
		e.fail(fmt.Errorf("%w: soft body shape %d", ErrInvalidData, b.Shape))
		return
	}
	e.writeString(b.Name)
	e.writeString(b.NameEn)
	e.writeUint8(uint8(b.Shape))
	e.writeIndex(AttrMatIndexSz, b.MaterialID)
	e.writeUint8(b.Group)
	e.writeUint16(b.NoCollideMask)
	e.writeUint8(b.Flags)
	e.writeInt(b.BendingDistance)
	e.writeInt(b.Clusters)
	e.writeFloat(b.Mass)
	e.writeFloat(b.Margin)
	e.writeInt(b.AeroModel)
	for _, v := range b.Config {
		e.writeFloat(v)
	}
	for _, v := range b.Cluster {
		e.writeFloat(v)
	}
	for _, v := range b.Iteration {
		e.writeInt32(v)
	}
	for _, v := range b.Material {
		e.writeFloat(v)
	}
	e.writeInt(len(b.Anchors))
	for _, a := range b.Anchors {
		e.writeIndex(AttrRBIndexSz, a.RigidID)
		e.writeVertexIndex(a.VertexID)
		e.writeUint8(a.NearMode)
	}
	e.writeInt(len(b.PinVertexs))
	for _, v := range b.PinVertexs {
		e.writeVertexIndex(v)
	}
}

// WritePMX writes .pmx data
func WritePMX(doc *Document, w io.Writer, opts ...Option) error {
	return NewPMXWriter(w, opts...).Write(doc)
}
