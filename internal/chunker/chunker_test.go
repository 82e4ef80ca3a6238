package chunker

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"doc-theme-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOCRClient 是测试用的 OCR 桩实现。
type fakeOCRClient struct {
	imageText  string
	nativeText string
	pdfText    string
	err        error
	nativeErr  error
	ocrCalls   int
}

func (f *fakeOCRClient) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	return f.imageText, f.err
}

func (f *fakeOCRClient) ExtractPDFText(ctx context.Context, pdf []byte) (string, error) {
	return f.nativeText, f.nativeErr
}

func (f *fakeOCRClient) RecognizePDF(ctx context.Context, pdf []byte) (string, error) {
	f.ocrCalls++
	return f.pdfText, f.err
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		fileName string
		want     Format
	}{
		{"report.pdf", FormatPDF},
		{"REPORT.PDF", FormatPDF},
		{"scan.png", FormatImage},
		{"photo.jpg", FormatImage},
		{"photo.jpeg", FormatImage},
		{"fax.tiff", FormatImage},
		{"old.bmp", FormatImage},
		{"notes.docx", FormatDocx},
		{"readme.txt", FormatText},
		{"archive.zip", FormatUnsupported},
		{"noextension", FormatUnsupported},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectFormat(tt.fileName), tt.fileName)
	}
}

func TestProcessUnsupportedFormat(t *testing.T) {
	ck := New(&fakeOCRClient{}, 50)

	doc, err := ck.Process(context.Background(), []byte("data"), FormatUnsupported, "DOC_1", "archive.zip")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Nil(t, doc)
}

func TestProcessText(t *testing.T) {
	ck := New(&fakeOCRClient{}, 50)

	doc, err := ck.Process(context.Background(), []byte("Alpha beta.\n\ngamma delta."), FormatText, "DOC_1", "notes.txt")
	require.NoError(t, err)
	require.Len(t, doc.Chunks, 2)

	assert.Equal(t, "Alpha beta.", doc.Chunks[0].Text)
	assert.Equal(t, 1, doc.Chunks[0].Page)
	assert.Equal(t, 1, doc.Chunks[0].Paragraph)
	assert.Equal(t, "Para 1", doc.Chunks[0].Citation)

	assert.Equal(t, "gamma delta.", doc.Chunks[1].Text)
	assert.Equal(t, 2, doc.Chunks[1].Paragraph)
	assert.Equal(t, "Para 2", doc.Chunks[1].Citation)

	assert.Equal(t, 1, doc.TotalPages)
	assert.Empty(t, doc.ExtractError)
}

func TestProcessTextWindowsLineEndings(t *testing.T) {
	ck := New(&fakeOCRClient{}, 50)

	doc, err := ck.Process(context.Background(), []byte("one\r\n\r\ntwo\r\n\r\n\r\nthree"), FormatText, "DOC_1", "notes.txt")
	require.NoError(t, err)
	require.Len(t, doc.Chunks, 3)
	assert.Equal(t, "one", doc.Chunks[0].Text)
	assert.Equal(t, "two", doc.Chunks[1].Text)
	assert.Equal(t, "three", doc.Chunks[2].Text)
}

func TestProcessTextEmpty(t *testing.T) {
	ck := New(&fakeOCRClient{}, 50)

	doc, err := ck.Process(context.Background(), []byte("  \n\n   \n\n"), FormatText, "DOC_1", "blank.txt")
	require.NoError(t, err)
	assert.Empty(t, doc.Chunks)
}

func TestSplitParagraphs(t *testing.T) {
	paragraphs := splitParagraphs("  first  \n\n\n\nsecond\n\n   \n\nthird")
	require.Len(t, paragraphs, 3)
	assert.Equal(t, "first", paragraphs[0])
	assert.Equal(t, "second", paragraphs[1])
	assert.Equal(t, "third", paragraphs[2])
}

func TestCitationFormats(t *testing.T) {
	assert.Equal(t, "Page 4, Para 2", pageCitation(4, 2))
	assert.Equal(t, "Para 7", paragraphCitation(7))
}

func TestAppendPageChunksResetsNumberingPerPage(t *testing.T) {
	doc := &model.Document{DocID: "DOC_1", TotalPages: 2}

	appendPageChunks(doc, 1, "first one\n\nfirst two")
	appendPageChunks(doc, 2, "second one")
	require.Len(t, doc.Chunks, 3)

	assert.Equal(t, 1, doc.Chunks[0].Paragraph)
	assert.Equal(t, "Page 1, Para 1", doc.Chunks[0].Citation)
	assert.Equal(t, 2, doc.Chunks[1].Paragraph)
	assert.Equal(t, "Page 1, Para 2", doc.Chunks[1].Citation)

	// 段落编号按页重置。
	assert.Equal(t, 2, doc.Chunks[2].Page)
	assert.Equal(t, 1, doc.Chunks[2].Paragraph)
	assert.Equal(t, "Page 2, Para 1", doc.Chunks[2].Citation)
}

func TestPDFPageTextUsesTextLayerWhenLongEnough(t *testing.T) {
	ocrStub := &fakeOCRClient{
		nativeText: "  A page of real extracted text, comfortably above the threshold.  ",
		pdfText:    "ocr noise",
	}
	ck := New(ocrStub, 50).(*chunker)

	text := ck.pdfPageText(context.Background(), []byte("%PDF"), 1)
	assert.Equal(t, "A page of real extracted text, comfortably above the threshold.", text)
	assert.Zero(t, ocrStub.ocrCalls)
}

func TestPDFPageTextFallsBackToOCRBelowThreshold(t *testing.T) {
	// 扫描页没有文本层，提取结果接近空串。
	ocrStub := &fakeOCRClient{nativeText: "  ", pdfText: "Recognized scanned content"}
	ck := New(ocrStub, 50).(*chunker)

	text := ck.pdfPageText(context.Background(), []byte("%PDF"), 1)
	assert.Equal(t, "Recognized scanned content", text)
	assert.Equal(t, 1, ocrStub.ocrCalls)
}

func TestPDFPageTextFallsBackToOCROnExtractionError(t *testing.T) {
	ocrStub := &fakeOCRClient{nativeErr: errors.New("tika parse failure"), pdfText: "Recovered by OCR"}
	ck := New(ocrStub, 50).(*chunker)

	text := ck.pdfPageText(context.Background(), []byte("%PDF"), 1)
	assert.Equal(t, "Recovered by OCR", text)
	assert.Equal(t, 1, ocrStub.ocrCalls)
}

func TestPDFPageTextKeepsTextLayerWhenOCRFails(t *testing.T) {
	ocrStub := &fakeOCRClient{nativeText: "short", err: errors.New("tika unavailable")}
	ck := New(ocrStub, 50).(*chunker)

	text := ck.pdfPageText(context.Background(), []byte("%PDF"), 1)
	assert.Equal(t, "short", text)
	assert.Equal(t, 1, ocrStub.ocrCalls)
}

// createTestDocx 在内存中构造一个最小可用的 docx。
func createTestDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestProcessDocx(t *testing.T) {
	ck := New(&fakeOCRClient{}, 50)

	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
</w:body>
</w:document>`

	doc, err := ck.Process(context.Background(), createTestDocx(t, docXML), FormatDocx, "DOC_1", "notes.docx")
	require.NoError(t, err)
	require.Len(t, doc.Chunks, 2)

	// 多个 run 合并为一个段落，空段落不占段落号。
	assert.Equal(t, "First paragraph", doc.Chunks[0].Text)
	assert.Equal(t, "Para 1", doc.Chunks[0].Citation)
	assert.Equal(t, "Second paragraph", doc.Chunks[1].Text)
	assert.Equal(t, "Para 2", doc.Chunks[1].Citation)
}

func TestProcessDocxInvalidZip(t *testing.T) {
	ck := New(&fakeOCRClient{}, 50)

	doc, err := ck.Process(context.Background(), []byte("not a zip file"), FormatDocx, "DOC_1", "broken.docx")
	require.NoError(t, err)
	assert.Empty(t, doc.Chunks)
	assert.NotEmpty(t, doc.ExtractError)
	assert.Equal(t, "DOC_1", doc.DocID)
}

func TestProcessDocxMissingDocumentXML(t *testing.T) {
	ck := New(&fakeOCRClient{}, 50)

	doc, err := ck.Process(context.Background(), createTestDocx(t, ""), FormatDocx, "DOC_1", "hollow.docx")
	require.NoError(t, err)
	assert.Empty(t, doc.Chunks)
	assert.Contains(t, doc.ExtractError, "word/document.xml")
}

func TestProcessImageOCRFailure(t *testing.T) {
	ck := New(&fakeOCRClient{err: errors.New("tika unavailable")}, 50)

	// 1x1 PNG
	img := pngFixture(t)
	doc, err := ck.Process(context.Background(), img, FormatImage, "DOC_1", "scan.png")
	require.NoError(t, err)
	assert.Empty(t, doc.Chunks)
	assert.Contains(t, doc.ExtractError, "OCR")
}

func TestProcessImageSuccess(t *testing.T) {
	ck := New(&fakeOCRClient{imageText: "Title line\n\nBody text"}, 50)

	doc, err := ck.Process(context.Background(), pngFixture(t), FormatImage, "DOC_1", "scan.png")
	require.NoError(t, err)
	require.Len(t, doc.Chunks, 2)

	// 图片恒为第 1 页。
	assert.Equal(t, 1, doc.Chunks[0].Page)
	assert.Equal(t, "Page 1, Para 1", doc.Chunks[0].Citation)
	assert.Equal(t, "Page 1, Para 2", doc.Chunks[1].Citation)
	assert.Equal(t, 1, doc.TotalPages)
}

func TestProcessImageInvalidData(t *testing.T) {
	ck := New(&fakeOCRClient{imageText: "text"}, 50)

	doc, err := ck.Process(context.Background(), []byte("not an image"), FormatImage, "DOC_1", "bad.png")
	require.NoError(t, err)
	assert.Empty(t, doc.Chunks)
	assert.NotEmpty(t, doc.ExtractError)
}
